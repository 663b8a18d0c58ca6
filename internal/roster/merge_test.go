package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

func TestMergeActiveEditsPreservesInactive(t *testing.T) {
	full := patientsTable(
		[]string{"Ana", "111", "OSDE", "nota", "Sí"},
		[]string{"Luis", "222", "PAMI", "", "No"},
		[]string{"Eva", "333", "Swiss", "", "Sí"},
	)
	// Eva's row was removed in the editor and Ana's phone changed.
	res := MergeActiveEdits(full, []Patient{
		{FullName: "Ana", Phone: "999", Insurer: "OSDE", Notes: "nota", Active: false},
	}, rowstore.DefaultCodec())

	assert.Equal(t, DefaultHeader, res.Header)
	assert.Equal(t, [][]string{
		{"Ana", "999", "OSDE", "nota", "Sí"},
		{"Luis", "222", "PAMI", "", "No"},
		{"Eva", "333", "Swiss", "", "Sí"},
	}, res.Rows)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.Added)
}

func TestMergeActiveEditsAppendsNewNames(t *testing.T) {
	full := patientsTable([]string{"Ana", "111", "OSDE", "", "Sí"})
	res := MergeActiveEdits(full, []Patient{
		{FullName: "Ana", Phone: "111", Insurer: "OSDE"},
		{FullName: " Zoe ", Phone: "555"},
		{FullName: ""},
	}, rowstore.DefaultCodec())

	assert.Equal(t, [][]string{
		{"Ana", "111", "OSDE", "", "Sí"},
		{"Zoe", "555", "", "", "Sí"},
	}, res.Rows)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 1, res.Added)
}

func TestMergeActiveEditsNotesOnlyGrow(t *testing.T) {
	full := patientsTable(
		[]string{"Ana", "1", "", "[2024-01-01 10:00] primera", "Sí"},
		[]string{"Eva", "2", "", "[2024-01-01 10:00] algo", "Sí"},
	)
	res := MergeActiveEdits(full, []Patient{
		{FullName: "Ana", Phone: "1", Notes: "[2024-01-01 10:00] primera\n[2024-01-02 10:00] segunda"},
		{FullName: "Eva", Phone: "2", Notes: "borrado"},
	}, rowstore.DefaultCodec())

	assert.Equal(t, "[2024-01-01 10:00] primera\n[2024-01-02 10:00] segunda", res.Rows[0][3])
	assert.Equal(t, "[2024-01-01 10:00] algo", res.Rows[1][3])
	assert.Equal(t, []string{"Eva"}, res.NotesKept)
	assert.Equal(t, 1, res.Updated)
}

func TestMergeActiveEditsKeepsExtraColumns(t *testing.T) {
	full := &rowstore.Table{
		Header: append(append([]string(nil), DefaultHeader...), "Email"),
		Rows:   [][]string{{"Ana", "1", "", "", "Sí", "ana@example.com"}},
	}
	res := MergeActiveEdits(full, []Patient{{FullName: "Ana", Phone: "2"}}, rowstore.DefaultCodec())
	assert.Equal(t, [][]string{{"Ana", "2", "", "", "Sí", "ana@example.com"}}, res.Rows)
}

func TestMergeActiveEditsSkipsInactiveRows(t *testing.T) {
	full := patientsTable(
		[]string{"Ana", "111", "OSDE", "", "No"},
		[]string{"Luis", "222", "PAMI", "", "Sí"},
	)
	res := MergeActiveEdits(full, []Patient{
		{FullName: "Ana", Phone: "999"},
		{FullName: "luis", Phone: "222", Insurer: "PAMI"},
	}, rowstore.DefaultCodec())

	assert.Equal(t, [][]string{
		{"Ana", "111", "OSDE", "", "No"},
		{"Luis", "222", "PAMI", "", "Sí"},
	}, res.Rows)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Added)
	assert.Equal(t, []string{"Ana"}, res.NotActive)
}

func TestMergeActiveEditsMatchesNamesIgnoringCase(t *testing.T) {
	full := patientsTable([]string{"Luis", "222", "", "", "Sí"})
	res := MergeActiveEdits(full, []Patient{
		{FullName: " LUIS ", Phone: "333"},
		{FullName: "eva"},
		{FullName: "Eva", Phone: "444"},
	}, rowstore.DefaultCodec())

	assert.Equal(t, [][]string{
		{"Luis", "333", "", "", "Sí"},
		{"Eva", "444", "", "", "Sí"},
	}, res.Rows)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Added)
}
