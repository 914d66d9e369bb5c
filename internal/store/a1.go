package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnLetter converts a 1-based column index to A1 letters (1 -> A, 28 -> AB).
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// ColumnIndex is the inverse of ColumnLetter; it returns 0 for invalid input.
func ColumnIndex(letters string) int {
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0
		}
		n = n*26 + int(r-'A'+1)
	}
	return n
}

// Cell returns an A1 reference such as "S12".
func Cell(col, row int) string {
	return ColumnLetter(col) + strconv.Itoa(row)
}

// RowRange returns the A1 range covering columns from..to of a single row.
func RowRange(from, to, row int) string {
	return Cell(from, row) + ":" + Cell(to, row)
}

// ParseCell splits an A1 reference into 1-based column and row.
func ParseCell(ref string) (col, row int, err error) {
	ref = strings.TrimSpace(ref)
	i := 0
	for i < len(ref) && (ref[i] < '0' || ref[i] > '9') {
		i++
	}
	col = ColumnIndex(ref[:i])
	row, convErr := strconv.Atoi(ref[i:])
	if col == 0 || convErr != nil || row < 1 {
		return 0, 0, fmt.Errorf("store: invalid cell reference %q", ref)
	}
	return col, row, nil
}

// ParseRange parses "E5:F5" (or a single cell) into its top-left and bottom-right corners.
func ParseRange(rng string) (c1, r1, c2, r2 int, err error) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	from, to, found := strings.Cut(rng, ":")
	if c1, r1, err = ParseCell(from); err != nil {
		return
	}
	if !found {
		return c1, r1, c1, r1, nil
	}
	if c2, r2, err = ParseCell(to); err != nil {
		return
	}
	if c2 < c1 || r2 < r1 {
		err = fmt.Errorf("store: inverted range %q", rng)
	}
	return
}

func quoteTable(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

// FormatValue renders a Go value the way it is stored in a cell.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
