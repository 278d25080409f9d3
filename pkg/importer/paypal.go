package importer

import (
	"fmt"
	"io"

	"github.com/fint-dev/fint/pkg/domain"
)

// PayPalParser parses PayPal activity CSV exports.
type PayPalParser struct{}

func (p *PayPalParser) Format() string { return "paypal" }

func (p *PayPalParser) Parse(r io.Reader) ([]*domain.RawTransaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	rows, err := readTable(preprocess(string(data)))
	if err != nil {
		return nil, fmt.Errorf("paypal: %w", err)
	}

	raws := make([]*domain.RawTransaction, 0, len(rows))
	for i, row := range rows {
		entry := &domain.PayPalRow{
			Date:             row["Date"],
			Time:             row["Time"],
			TimeZone:         row["Time Zone"],
			Name:             row["Name"],
			Type:             row["Type"],
			Status:           row["Status"],
			CurrencyCode:     row["Currency"],
			Gross:            row["Gross"],
			Fee:              row["Fee"],
			Net:              row["Net"],
			FromEmailAddress: row["From Email Address"],
			ToEmailAddress:   row["To Email Address"],
			TransactionID:    row["Transaction ID"],
			ReferenceTxnID:   row["Reference Txn ID"],
			Balance:          row["Balance"],
			Subject:          row["Subject"],
			Note:             row["Note"],
			BalanceImpact:    row["Balance Impact"],
		}
		if entry.TransactionID == "" {
			return nil, fmt.Errorf("paypal row %d: missing Transaction ID", i+2)
		}

		// Memo rows reuse their transaction's id; suffix them so the
		// composite key stays unique.
		transactionID := entry.TransactionID
		if entry.BalanceImpact == "Memo" {
			transactionID += "-M"
		}

		raws = append(raws, &domain.RawTransaction{
			Key: domain.Key{
				Source:        domain.SourceManualPayPal,
				TransactionID: transactionID,
			},
			Pending: false,
			Data:    entry,
		})
	}
	return raws, nil
}
