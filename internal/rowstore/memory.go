package rowstore

import (
	"context"
	"fmt"
	"sync"
)

// Call records one operation received by a MemoryStore.
type Call struct {
	Op    string
	Table string
	Row   int
	Col   int
	Value string
	Cells []string
}

// MemoryStore is an in-process Store with the same row numbering as a sheet.
// It backs the development mode and the tests.
type MemoryStore struct {
	mu        sync.Mutex
	tables    map[string]*Table
	calls     []Call
	failAfter int
	failErr   error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*Table), failAfter: -1}
}

// Seed installs a table, replacing any existing one.
func (m *MemoryStore) Seed(name string, header []string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &Table{Name: name, Header: append([]string(nil), header...)}
	for _, r := range rows {
		t.Rows = append(t.Rows, append([]string(nil), r...))
	}
	m.tables[name] = t
}

// FailWritesAfter makes every write after the first n return err. n < 0 disables it.
func (m *MemoryStore) FailWritesAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failErr = err
}

// Calls returns the writes received so far (reads are not recorded).
func (m *MemoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// ResetCalls clears the recorded writes.
func (m *MemoryStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MemoryStore) ReadTable(_ context.Context, name string) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("rowstore: read %s: %w", name, ErrTableNotFound)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) AppendRow(_ context.Context, table string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.writable(table)
	if err != nil {
		return err
	}
	if err := m.record(Call{Op: "append", Table: table, Cells: append([]string(nil), row...)}); err != nil {
		return err
	}
	t.Rows = append(t.Rows, append([]string(nil), row...))
	return nil
}

func (m *MemoryStore) UpdateCell(_ context.Context, table string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.writable(table)
	if err != nil {
		return err
	}
	if row < HeaderRow || col < 1 {
		return fmt.Errorf("rowstore: update %s: invalid cell (%d,%d)", table, row, col)
	}
	if err := m.record(Call{Op: "update", Table: table, Row: row, Col: col, Value: value}); err != nil {
		return err
	}
	if row == HeaderRow {
		t.Header = grow(t.Header, col)
		t.Header[col-1] = value
		return nil
	}
	idx := row - FirstDataRow
	for len(t.Rows) <= idx {
		t.Rows = append(t.Rows, nil)
	}
	t.Rows[idx] = grow(t.Rows[idx], col)
	t.Rows[idx][col-1] = value
	return nil
}

func (m *MemoryStore) DeleteRow(_ context.Context, table string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.writable(table)
	if err != nil {
		return err
	}
	idx := row - FirstDataRow
	if idx < 0 || idx >= len(t.Rows) {
		return fmt.Errorf("rowstore: delete %s: row %d out of range", table, row)
	}
	if err := m.record(Call{Op: "delete", Table: table, Row: row}); err != nil {
		return err
	}
	t.Rows = append(t.Rows[:idx], t.Rows[idx+1:]...)
	return nil
}

func (m *MemoryStore) OverwriteTable(_ context.Context, table string, header []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.writable(table); err != nil {
		return err
	}
	if err := m.record(Call{Op: "overwrite", Table: table, Row: len(rows)}); err != nil {
		return err
	}
	t := &Table{Name: table, Header: append([]string(nil), header...)}
	for _, r := range rows {
		t.Rows = append(t.Rows, append([]string(nil), r...))
	}
	m.tables[table] = t
	return nil
}

func (m *MemoryStore) writable(table string) (*Table, error) {
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("rowstore: write %s: %w", table, ErrTableNotFound)
	}
	return t, nil
}

// record must be called with mu held.
func (m *MemoryStore) record(c Call) error {
	if m.failAfter >= 0 && len(m.calls) >= m.failAfter {
		return fmt.Errorf("rowstore: %s %s: %w", c.Op, c.Table, m.failErr)
	}
	m.calls = append(m.calls, c)
	return nil
}

func grow(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}
