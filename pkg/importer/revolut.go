package importer

import (
	"fmt"
	"io"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/hashing"
)

// RevolutParser parses Revolut statement CSV exports.
type RevolutParser struct{}

func (p *RevolutParser) Format() string { return "revolut" }

func (p *RevolutParser) Parse(r io.Reader) ([]*domain.RawTransaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	rows, err := readTable(preprocess(string(data)))
	if err != nil {
		return nil, fmt.Errorf("revolut: %w", err)
	}

	raws := make([]*domain.RawTransaction, 0, len(rows))
	for _, row := range rows {
		entry := &domain.RevolutRow{
			Type:          row["Type"],
			Product:       row["Product"],
			StartedDate:   row["Started Date"],
			CompletedDate: row["Completed Date"],
			Description:   row["Description"],
			Amount:        row["Amount"],
			Fee:           row["Fee"],
			CurrencyCode:  row["Currency"],
			State:         row["State"],
			Balance:       row["Balance"],
		}

		raws = append(raws, &domain.RawTransaction{
			Key: domain.Key{
				Source: domain.SourceManualRevolut,
				// Synthetic id over every distinguishing column.
				TransactionID: hashing.TupleHash(
					entry.Type,
					entry.StartedDate,
					entry.CompletedDate,
					entry.Description,
					entry.Amount,
					entry.Fee,
					entry.Balance,
				),
			},
			Pending: false,
			Data:    entry,
		})
	}
	return raws, nil
}
