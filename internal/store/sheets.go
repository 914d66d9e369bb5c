package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const valueInput = "USER_ENTERED"

// SheetsStore talks to a Google Sheets spreadsheet through the Sheets v4 API.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string

	mu     sync.Mutex
	titles map[string]bool
}

// NewSheetsStore authenticates with a service-account key file.
func NewSheetsStore(ctx context.Context, spreadsheetID, credentialsFile string) (*SheetsStore, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is empty")
	}
	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets: read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(key, sheets.SpreadsheetsScope)
	if err != nil {
		// An OAuth client id JSON lands here; only service-account keys carry client_email.
		return nil, fmt.Errorf("sheets: credentials must be a service-account key: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	return &SheetsStore{svc: svc, spreadsheetID: spreadsheetID, titles: make(map[string]bool)}, nil
}

func (s *SheetsStore) values(ctx context.Context, rng string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		grid[i] = make([]string, len(row))
		for j, v := range row {
			grid[i][j] = FormatValue(v)
		}
	}
	return grid, nil
}

func (s *SheetsStore) GetAllRecords(ctx context.Context, table string) ([]Record, error) {
	grid, err := s.values(ctx, quoteTable(table))
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", table, err)
	}
	return BuildRecords(grid), nil
}

func (s *SheetsStore) GetHeaders(ctx context.Context, table string) ([]string, error) {
	grid, err := s.values(ctx, quoteTable(table)+"!1:1")
	if err != nil {
		return nil, fmt.Errorf("sheets: read headers %s: %w", table, err)
	}
	if len(grid) == 0 {
		return nil, nil
	}
	return grid[0], nil
}

func (s *SheetsStore) AppendRow(ctx context.Context, table string, values []any) error {
	// Anchor at A1 so the API never shifts the row into a later column block.
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, quoteTable(table)+"!A1", &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append %s: %w", table, err)
	}
	return nil
}

func (s *SheetsStore) UpdateCell(ctx context.Context, table string, row, col int, value any) error {
	return s.UpdateRange(ctx, table, Cell(col, row), [][]any{{value}})
}

func (s *SheetsStore) UpdateRange(ctx context.Context, table, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, quoteTable(table)+"!"+rng, &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInput).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: update %s!%s: %w", table, rng, err)
	}
	return nil
}

func (s *SheetsStore) BatchUpdate(ctx context.Context, table string, cells []CellUpdate) error {
	if len(cells) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, 0, len(cells))
	for _, c := range cells {
		data = append(data, &sheets.ValueRange{
			Range:  quoteTable(table) + "!" + Cell(c.Col, c.Row),
			Values: [][]interface{}{{c.Value}},
		})
	}
	_, err := s.svc.Spreadsheets.Values.
		BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{ValueInputOption: valueInput, Data: data}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: batch update %s (%d cells): %w", table, len(cells), err)
	}
	return nil
}

func (s *SheetsStore) FindCell(ctx context.Context, table, value string, col int) (int, error) {
	letter := ColumnLetter(col)
	grid, err := s.values(ctx, quoteTable(table)+"!"+letter+":"+letter)
	if err != nil {
		return 0, fmt.Errorf("sheets: find in %s: %w", table, err)
	}
	for i, row := range grid {
		if len(row) > 0 && row[0] == value {
			return i + 1, nil
		}
	}
	return 0, ErrNotFound
}

func (s *SheetsStore) GetOrCreate(ctx context.Context, table string, headers []string) error {
	if err := s.loadTitles(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	exists := s.titles[table]
	s.mu.Unlock()
	if !exists {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: table}},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("sheets: add worksheet %s: %w", table, err)
		}
		s.mu.Lock()
		s.titles[table] = true
		s.mu.Unlock()
	}
	current, err := s.GetHeaders(ctx, table)
	if err != nil {
		return err
	}
	if len(current) > 0 || len(headers) == 0 {
		return nil
	}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return s.UpdateRange(ctx, table, RowRange(1, len(headers), 1), [][]any{row})
}

func (s *SheetsStore) loadTitles(ctx context.Context) error {
	s.mu.Lock()
	loaded := len(s.titles) > 0
	s.mu.Unlock()
	if loaded {
		return nil
	}
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: open spreadsheet: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			s.titles[sh.Properties.Title] = true
		}
	}
	return nil
}

func (s *SheetsStore) Close() error { return nil }
