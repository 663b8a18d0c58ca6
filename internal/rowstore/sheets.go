package rowstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// valueInput keeps cells as literal strings so the sheet never reinterprets
// "2024-01-01" as a date serial.
const valueInput = "RAW"

// SheetsStore implements Store on one Google Sheets spreadsheet, one sheet per table.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheetsStore builds the Sheets client from opts (credentials, endpoint).
func NewSheetsStore(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsStore, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("rowstore: spreadsheet id is required")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("rowstore: create sheets service: %w", err)
	}
	return &SheetsStore{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: make(map[string]int64)}, nil
}

func (s *SheetsStore) ReadTable(ctx context.Context, name string) (*Table, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange(name)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("rowstore: read %s: %w", name, classify(err))
	}
	t := &Table{Name: name}
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = fmt.Sprint(v)
		}
		if i == 0 {
			t.Header = row
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (s *SheetsStore) AppendRow(ctx context.Context, table string, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toValues(row)}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, sheetRange(table), vr).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rowstore: append %s: %w", table, classify(err))
	}
	return nil
}

func (s *SheetsStore) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	if row < HeaderRow || col < 1 {
		return fmt.Errorf("rowstore: update %s: invalid cell (%d,%d)", table, row, col)
	}
	rng := fmt.Sprintf("%s!%s%d", quoteSheet(table), ColumnLetter(col), row)
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption(valueInput).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rowstore: update %s %s: %w", table, rng, classify(err))
	}
	return nil
}

func (s *SheetsStore) DeleteRow(ctx context.Context, table string, row int) error {
	if row < FirstDataRow {
		return fmt.Errorf("rowstore: delete %s: row %d is not a data row", table, row)
	}
	sheetID, err := s.sheetID(ctx, table)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// sheet id 0 is valid and would otherwise be dropped as a zero value
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("rowstore: delete %s row %d: %w", table, row, classify(err))
	}
	return nil
}

func (s *SheetsStore) OverwriteTable(ctx context.Context, table string, header []string, rows [][]string) error {
	rng := sheetRange(table)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("rowstore: clear %s: %w", table, classify(err))
	}
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, toValues(header))
	for _, r := range rows {
		values = append(values, toValues(r))
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, quoteSheet(table)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInput).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rowstore: overwrite %s: %w", table, classify(err))
	}
	return nil
}

// sheetID resolves and memoizes the numeric id batchUpdate needs.
func (s *SheetsStore) sheetID(ctx context.Context, table string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[table]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("rowstore: resolve sheet %s: %w", table, classify(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
	}
	id, ok = s.sheetIDs[table]
	if !ok {
		return 0, fmt.Errorf("rowstore: resolve sheet %s: %w", table, ErrTableNotFound)
	}
	return id, nil
}

// ColumnLetter converts a 1-based column number to A1 letters (1 -> A, 27 -> AA).
func ColumnLetter(col int) string {
	var out []byte
	for col > 0 {
		col--
		out = append([]byte{byte('A' + col%26)}, out...)
		col /= 26
	}
	return string(out)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func sheetRange(name string) string {
	return quoteSheet(name)
}

func toValues(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// classify maps "no such spreadsheet/sheet" API errors onto ErrTableNotFound.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrTableNotFound, apiErr.Message)
		}
		if apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range") {
			return fmt.Errorf("%w: %s", ErrTableNotFound, apiErr.Message)
		}
	}
	return err
}
