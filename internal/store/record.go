package store

import (
	"strconv"
	"strings"
	"unicode"
)

// Header is the cleaned header row of a table shared by all its records.
type Header struct {
	Names []string
	index map[string]int
}

// NewHeader cleans raw header cells: blanks become EMPTY_<i> and duplicates get
// a numeric suffix, so every column has a unique name.
func NewHeader(raw []string) *Header {
	h := &Header{Names: make([]string, len(raw)), index: make(map[string]int, len(raw))}
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "EMPTY_" + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		h.Names[i] = name
		key := NormalizeHeader(name)
		if _, taken := h.index[key]; !taken {
			h.index[key] = i
		}
	}
	return h
}

// Index returns the 0-based position of the first column matching any alias.
func (h *Header) Index(aliases ...string) (int, bool) {
	if h == nil {
		return 0, false
	}
	for _, a := range aliases {
		if i, ok := h.index[NormalizeHeader(a)]; ok {
			return i, true
		}
	}
	return 0, false
}

// NormalizeHeader is the single comparison form for header names: lower case,
// letters and digits only. "REVENUE (₦)", "revenue" and "Revenue_" all match.
func NormalizeHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Record is one data row.
type Record struct {
	Row    int
	Values []string
	Header *Header
}

// Col returns the value at the 1-based column, or "" past the end of the row.
func (r Record) Col(col int) string {
	if col < 1 || col > len(r.Values) {
		return ""
	}
	return r.Values[col-1]
}

// Lookup finds a value by header alias.
func (r Record) Lookup(aliases ...string) (string, bool) {
	i, ok := r.Header.Index(aliases...)
	if !ok {
		return "", false
	}
	if i >= len(r.Values) {
		return "", true
	}
	return r.Values[i], true
}

// Get is Lookup without the found flag.
func (r Record) Get(aliases ...string) string {
	v, _ := r.Lookup(aliases...)
	return v
}

// Field resolves a column by alias and falls back to its fixed position.
func (r Record) Field(col int, aliases ...string) string {
	if v, ok := r.Lookup(aliases...); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(r.Col(col))
}

// Blank reports whether every cell in the row is empty.
func (r Record) Blank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// BuildRecords turns a raw value grid (header first) into records padded to the header width.
func BuildRecords(grid [][]string) []Record {
	if len(grid) == 0 {
		return nil
	}
	h := NewHeader(grid[0])
	width := len(h.Names)
	out := make([]Record, 0, len(grid)-1)
	for i, row := range grid[1:] {
		vals := make([]string, max(width, len(row)))
		copy(vals, row)
		out = append(out, Record{Row: i + 2, Values: vals, Header: h})
	}
	return out
}
