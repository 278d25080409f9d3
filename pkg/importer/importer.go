package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/fint-dev/fint/pkg/domain"
)

// Parser converts one bank's CSV export into raw transaction records.
// Records come back with an empty accountId and no dedup hash; the
// ingestion pipeline fills both in.
type Parser interface {
	Parse(r io.Reader) ([]*domain.RawTransaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists registered formats.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&NatWestParser{})
	r.Register(&RevolutParser{})
	r.Register(&PayPalParser{})
	return r
}

// preprocess strips carriage returns and blank lines; bank exports are
// inconsistent about both.
func preprocess(data string) []string {
	lines := []string{}
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// readTable parses header-first CSV lines into one map per row, keyed by
// column name.
func readTable(lines []string) ([]map[string]string, error) {
	cr := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d: %d fields, header has %d", i+2, len(rec), len(header))
		}
		row := map[string]string{}
		for j, name := range header {
			row[name] = rec[j]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
