package rowstore

import "context"

// Reader loads whole-table snapshots.
type Reader interface {
	ReadTable(ctx context.Context, name string) (*Table, error)
}

// Store is the full row store contract. Every write is one remote call and
// takes effect immediately; there is no batching and no retry.
type Store interface {
	Reader
	// AppendRow adds row after the last data row.
	AppendRow(ctx context.Context, table string, row []string) error
	// UpdateCell sets a single cell. row and col are 1-based.
	UpdateCell(ctx context.Context, table string, row, col int, value string) error
	// DeleteRow removes a data row, shifting every row below it up by one.
	DeleteRow(ctx context.Context, table string, row int) error
	// OverwriteTable replaces the whole sheet with header plus rows.
	OverwriteTable(ctx context.Context, table string, header []string, rows [][]string) error
}
