package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

func patientsTable(rows ...[]string) *rowstore.Table {
	return &rowstore.Table{Name: "Pacientes", Header: DefaultHeader, Rows: rows}
}

func TestParseRoster(t *testing.T) {
	r := Parse(patientsTable(
		[]string{"Ana", "111", "OSDE", "dolor lumbar", "Sí"},
		[]string{"", "222", "", "", "Sí"},
		[]string{"Luis", "333", "PAMI", "", "No"},
		[]string{"Eva", "444", "Swiss", "", "Si"},
	), rowstore.DefaultCodec())

	require.Len(t, r.Patients, 3)
	p, row, ok := r.Find(" Luis ")
	require.True(t, ok)
	assert.Equal(t, Patient{FullName: "Luis", Phone: "333", Insurer: "PAMI"}, p)
	assert.Equal(t, 4, row)

	assert.Equal(t, []string{"Ana", "Eva"}, r.ActiveNames())
	assert.True(t, r.IsActive("Ana"))
	assert.False(t, r.IsActive("Luis"))
	assert.False(t, r.IsActive("Nadie"))
	assert.True(t, r.Has("ana"))
	assert.Equal(t, "Ana", r.All()[0].FullName)
	assert.Len(t, r.All(), 3)
}

func TestResolveColumnsFallsBackForMissingActive(t *testing.T) {
	tbl := &rowstore.Table{
		Header: []string{"Full Name", "Phone", "Insurer", "Notes"},
		Rows:   [][]string{{"Ana", "1", "OSDE", "", "Sí"}},
	}
	cols := ResolveColumns(tbl)
	assert.Equal(t, 4, cols.Active)
	assert.True(t, Parse(tbl, rowstore.DefaultCodec()).IsActive("Ana"))
}

func TestResolveColumnsByHeaderName(t *testing.T) {
	tbl := &rowstore.Table{Header: []string{"Activo", "Obra Social", "Nombre Completo", "Telefono", "Descripcion del problema"}}
	assert.Equal(t, Columns{Name: 2, Phone: 3, Insurer: 1, Notes: 4, Active: 0}, ResolveColumns(tbl))
}

func TestEncode(t *testing.T) {
	cols := ResolveColumns(patientsTable())
	row := cols.Encode(Patient{FullName: "Ana", Phone: "1", Insurer: "OSDE", Active: true}, rowstore.DefaultCodec(), 0)
	assert.Equal(t, []string{"Ana", "1", "OSDE", "", "Sí"}, row)
}
