package rowstore

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	// DateLayout is the canonical stored date format.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical stored time format.
	TimeLayout = "15:04:05"
)

// legacy formats found in rows written before the canonical ones were fixed
var (
	legacyDateLayouts = []string{"02/01/2006", "2/1/2006", "2006/01/02"}
	legacyTimeLayouts = []string{"15:04", "15:04:05.000"}
)

// Codec converts typed values to and from sheet cells.
type Codec struct {
	Yes string
	No  string
}

// DefaultCodec uses the Spanish yes/no tokens the clinic sheets carry.
func DefaultCodec() Codec {
	return Codec{Yes: "Sí", No: "No"}
}

// FormatBool renders a boolean as the localized token.
func (c Codec) FormatBool(v bool) string {
	if v {
		return c.Yes
	}
	return c.No
}

// ParseBool is true only for the yes token (or an obvious spelling of it).
// Everything else, including blanks, reads as false.
func (c Codec) ParseBool(s string) bool {
	v := NormalizeHeader(s)
	if v == "" {
		return false
	}
	if v == NormalizeHeader(c.Yes) {
		return true
	}
	switch v {
	case "si", "yes", "true", "1", "x":
		return true
	}
	return false
}

// FormatDate renders d as YYYY-MM-DD.
func FormatDate(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseDate accepts the canonical layout plus a few legacy day-first ones.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("rowstore: invalid date %q", s)
}

// FormatTime renders t as HH:MM:SS, dropping sub-second precision.
func FormatTime(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseTime accepts HH:MM:SS and HH:MM. Sub-second parts are discarded so
// that keys built from differently formatted rows compare equal.
func ParseTime(s string) (civil.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := civil.ParseTime(s); err == nil {
		t.Nanosecond = 0
		return t, nil
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.Time{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return civil.Time{}, fmt.Errorf("rowstore: invalid time %q", s)
}
