package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/hashing"
)

// NatWestParser parses NatWest current-account CSV exports. These are the
// messiest of the supported formats: rows carry trailing commas, headers
// carry stray spaces, and two date styles appear depending on how the
// export was produced.
type NatWestParser struct{}

func (p *NatWestParser) Format() string { return "natwest" }

var natwestMonths = map[string]string{
	"Jan": "01", "Feb": "02", "Mar": "03", "Apr": "04",
	"May": "05", "Jun": "06", "Jul": "07", "Aug": "08",
	"Sep": "09", "Oct": "10", "Nov": "11", "Dec": "12",
}

func (p *NatWestParser) Parse(r io.Reader) ([]*domain.RawTransaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	lines := preprocess(string(data))
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, ",")
	}
	if len(lines) > 0 {
		// Remove extraneous spaces in headers
		cols := strings.Split(lines[0], ",")
		for i, col := range cols {
			cols[i] = strings.TrimSpace(col)
		}
		lines[0] = strings.Join(cols, ",")
	}

	rows, err := readTable(lines)
	if err != nil {
		return nil, fmt.Errorf("natwest: %w", err)
	}

	raws := make([]*domain.RawTransaction, 0, len(rows))
	for i, row := range rows {
		date, err := natwestDate(row["Date"])
		if err != nil {
			return nil, fmt.Errorf("natwest row %d: %w", i+2, err)
		}

		entry := &domain.NatWestRow{
			Date:          date,
			Description:   row["Description"],
			Type:          row["Type"],
			Value:         row["Value"],
			Balance:       row["Balance"],
			AccountName:   row["Account Name"],
			AccountNumber: row["Account Number"],
		}

		raws = append(raws, &domain.RawTransaction{
			Key: domain.Key{
				Source: domain.SourceManualNatWest,
				// Synthetic id: NatWest exports carry no transaction id,
				// so one is derived from the row's identifying columns.
				TransactionID: hashing.TupleHash(entry.Date, entry.Value, entry.Balance, entry.Description),
			},
			Pending: false,
			Data:    entry,
		})
	}
	return raws, nil
}

// natwestDate converts "DD Mon YYYY" dates to the "DD/MM/YYYY" form used
// by the other export style; both appear in the wild.
func natwestDate(date string) (string, error) {
	if len(date) < 3 || date[2] != ' ' {
		return date, nil
	}

	bits := strings.Split(date, " ")
	if len(bits) != 3 {
		return "", fmt.Errorf("unparseable date %q", date)
	}
	month, ok := natwestMonths[bits[1]]
	if !ok {
		return "", fmt.Errorf("unparseable date %q: unknown month %q", date, bits[1])
	}
	return fmt.Sprintf("%s/%s/%s", bits[0], month, bits[2]), nil
}
