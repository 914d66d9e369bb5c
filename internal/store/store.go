// Package store is the record store adapter over the spreadsheet that backs every table.
//
// Rows are addressed the way the spreadsheet addresses them: 1-based, with the
// header on row 1, so the first data row is row 2.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by FindCell when no cell matches.
var ErrNotFound = errors.New("store: cell not found")

// CellUpdate is a single cell write used by BatchUpdate.
type CellUpdate struct {
	Row   int
	Col   int
	Value any
}

// Store is the contract every backend implements. Calls are independent
// remote operations; nothing here is transactional.
type Store interface {
	// GetAllRecords returns every data row of table with cleaned headers.
	GetAllRecords(ctx context.Context, table string) ([]Record, error)
	// GetHeaders returns the raw header row.
	GetHeaders(ctx context.Context, table string) ([]string, error)
	AppendRow(ctx context.Context, table string, values []any) error
	UpdateCell(ctx context.Context, table string, row, col int, value any) error
	// UpdateRange writes a rectangular A1 range such as "E5:F5".
	UpdateRange(ctx context.Context, table, rng string, values [][]any) error
	BatchUpdate(ctx context.Context, table string, cells []CellUpdate) error
	// FindCell returns the row of the first cell in col whose value equals value.
	FindCell(ctx context.Context, table, value string, col int) (int, error)
	// GetOrCreate makes sure table exists and carries headers when empty.
	GetOrCreate(ctx context.Context, table string, headers []string) error
	Close() error
}
