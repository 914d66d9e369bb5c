package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps tables in process memory. It stands in for the spreadsheet
// in tests and when no service-account credentials are configured.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][][]string)}
}

// Seed replaces a table with the given grid (header row first).
func (m *MemoryStore) Seed(table string, grid [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = copyGrid(grid)
}

// Grid returns a copy of the raw table, header included.
func (m *MemoryStore) Grid(table string) [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyGrid(m.tables[table])
}

func copyGrid(src [][]string) [][]string {
	cp := make([][]string, len(src))
	for i, row := range src {
		cp[i] = append([]string(nil), row...)
	}
	return cp
}

func (m *MemoryStore) table(name string) ([][]string, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("store: worksheet %q not found", name)
	}
	return t, nil
}

func (m *MemoryStore) GetAllRecords(ctx context.Context, table string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	t, err := m.table(table)
	if err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	grid := copyGrid(t)
	m.mu.RUnlock()
	return BuildRecords(grid), nil
}

func (m *MemoryStore) GetHeaders(ctx context.Context, table string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, nil
	}
	return append([]string(nil), t[0]...), nil
}

func (m *MemoryStore) AppendRow(ctx context.Context, table string, values []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return err
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = FormatValue(v)
	}
	if len(t) == 0 {
		t = append(t, []string{})
	}
	m.tables[table] = append(t, row)
	return nil
}

func (m *MemoryStore) set(table string, row, col int, value any) error {
	t, err := m.table(table)
	if err != nil {
		return err
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("store: invalid cell %d,%d", row, col)
	}
	for len(t) < row {
		t = append(t, []string{})
	}
	r := t[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = FormatValue(value)
	t[row-1] = r
	m.tables[table] = t
	return nil
}

func (m *MemoryStore) UpdateCell(ctx context.Context, table string, row, col int, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(table, row, col, value)
}

func (m *MemoryStore) UpdateRange(ctx context.Context, table, rng string, values [][]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c1, r1, c2, r2, err := ParseRange(rng)
	if err != nil {
		return err
	}
	if len(values) > r2-r1+1 {
		return fmt.Errorf("store: %d rows do not fit range %s", len(values), rng)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range values {
		if len(row) > c2-c1+1 {
			return fmt.Errorf("store: %d columns do not fit range %s", len(row), rng)
		}
		for j, v := range row {
			if err := m.set(table, r1+i, c1+j, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MemoryStore) BatchUpdate(ctx context.Context, table string, cells []CellUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cells {
		if err := m.set(table, c.Row, c.Col, c.Value); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) FindCell(ctx context.Context, table, value string, col int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.table(table)
	if err != nil {
		return 0, err
	}
	for i, row := range t {
		if col-1 < len(row) && row[col-1] == value {
			return i + 1, nil
		}
	}
	return 0, ErrNotFound
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, table string, headers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tables[table]
	if len(t) == 0 || len(t[0]) == 0 {
		m.tables[table] = append([][]string{append([]string(nil), headers...)}, rowsAfterHeader(t)...)
	}
	return nil
}

func rowsAfterHeader(t [][]string) [][]string {
	if len(t) <= 1 {
		return nil
	}
	return t[1:]
}

func (m *MemoryStore) Close() error { return nil }
