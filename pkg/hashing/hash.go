package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fint-dev/fint/pkg/domain"
)

var (
	// ErrMissingField means a payload lacks a field the account's hashing
	// strategy needs. The record can't be hashed; it is a data problem,
	// not something to retry.
	ErrMissingField = errors.New("payload missing required field")

	// ErrUnknownStrategy means the account is misconfigured.
	ErrUnknownStrategy = errors.New("unknown hashing strategy")
)

// TupleHash is the hex SHA-256 of the JSON encoding of the given ordered
// components. This encoding is part of the persisted format: stored dedup
// hashes only stay valid while it is stable.
func TupleHash(parts ...string) string {
	if parts == nil {
		parts = []string{}
	}
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// occurrenceHash wraps a content hash with its occurrence index within a
// disambiguation run. The index is encoded as a JSON number.
func occurrenceHash(contentHash string, n int) string {
	data, _ := json.Marshal([]interface{}{contentHash, n})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// stripNonAlnum drops everything outside [a-zA-Z0-9]. Bank exports and
// open banking feeds disagree on spacing/punctuation in remittance text,
// so hashes are computed over the letters and digits only.
func stripNonAlnum(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// ContentHash computes the content-addressable hash for a raw transaction
// under the given account's hashing strategy. Pure and deterministic:
// equal payloads always produce equal hashes.
func ContentHash(account *domain.Account, raw *domain.RawTransaction) (string, error) {
	switch raw.Key.Source {
	case domain.SourceOpenBanking:
		data, ok := raw.Data.(*domain.OpenBankingData)
		if !ok {
			return "", fmt.Errorf("open_banking record %s: %w: payload type mismatch", raw.Key.TransactionID, ErrMissingField)
		}
		return openBankingHash(account, raw.Key.TransactionID, data)
	case domain.SourceManualNatWest:
		data, ok := raw.Data.(*domain.NatWestRow)
		if !ok {
			return "", fmt.Errorf("manual_natwest record %s: %w: payload type mismatch", raw.Key.TransactionID, ErrMissingField)
		}
		return natwestRowHash(data)
	case domain.SourceManualRevolut:
		data, ok := raw.Data.(*domain.RevolutRow)
		if !ok {
			return "", fmt.Errorf("manual_revolut record %s: %w: payload type mismatch", raw.Key.TransactionID, ErrMissingField)
		}
		return revolutRowHash(data)
	case domain.SourceManualPayPal:
		data, ok := raw.Data.(*domain.PayPalRow)
		if !ok {
			return "", fmt.Errorf("manual_paypal record %s: %w: payload type mismatch", raw.Key.TransactionID, ErrMissingField)
		}
		return paypalRowHash(data)
	}
	return "", fmt.Errorf("unknown raw transaction source %q", raw.Key.Source)
}

func openBankingHash(account *domain.Account, transactionID string, data *domain.OpenBankingData) (string, error) {
	switch account.HashingStrategy {
	case domain.StrategyTxid:
		// Provider ids are globally unique; use them verbatim.
		return transactionID, nil

	case domain.StrategyPayPal:
		// PayPal issues fee sub-records as "<parent>_<suffix>"; hashing
		// the first segment merges fees into their parent transaction.
		if data.TransactionID == "" {
			return "", fmt.Errorf("paypal strategy: %w: transactionId", ErrMissingField)
		}
		return strings.SplitN(data.TransactionID, "_", 2)[0], nil

	case domain.StrategyNatWest:
		if data.BookingDate == "" {
			return "", fmt.Errorf("natwest strategy: %w: bookingDate", ErrMissingField)
		}
		if data.RemittanceInformationUnstructured == "" {
			return "", fmt.Errorf("natwest strategy: %w: remittanceInformationUnstructured", ErrMissingField)
		}
		if data.TransactionAmount.Amount == "" {
			return "", fmt.Errorf("natwest strategy: %w: transactionAmount.amount", ErrMissingField)
		}
		return TupleHash(
			data.BookingDate, // YYYY-MM-DD
			stripNonAlnum(data.RemittanceInformationUnstructured),
			data.TransactionAmount.Amount, // eg. -65.67
		), nil

	case domain.StrategyRevolut:
		if data.BookingDateTime == "" {
			return "", fmt.Errorf("revolut strategy: %w: bookingDateTime", ErrMissingField)
		}
		if data.TransactionAmount.Amount == "" {
			return "", fmt.Errorf("revolut strategy: %w: transactionAmount.amount", ErrMissingField)
		}
		if data.ProprietaryBankTransactionCode == "" {
			return "", fmt.Errorf("revolut strategy: %w: proprietaryBankTransactionCode", ErrMissingField)
		}
		return TupleHash(
			normaliseDateTime(data.BookingDateTime), // YYYY-MM-DD HH:MM:SS
			data.TransactionAmount.Amount,
			data.ProprietaryBankTransactionCode, // CARD_PAYMENT, TOPUP, FEE, ...
		), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, account.HashingStrategy)
}

// normaliseDateTime converts an ISO-8601 timestamp ("2024-02-01T09:30:00.123Z")
// to the "YYYY-MM-DD HH:MM:SS" form used by Revolut's own CSV exports, so
// feed and export records hash identically.
func normaliseDateTime(s string) string {
	s = strings.SplitN(s, ".", 2)[0]
	s = strings.TrimSuffix(s, "Z")
	return strings.Replace(s, "T", " ", 1)
}

func natwestRowHash(data *domain.NatWestRow) (string, error) {
	if data.Date == "" {
		return "", fmt.Errorf("manual natwest: %w: Date", ErrMissingField)
	}
	if data.Description == "" {
		return "", fmt.Errorf("manual natwest: %w: Description", ErrMissingField)
	}
	if data.Value == "" {
		return "", fmt.Errorf("manual natwest: %w: Value", ErrMissingField)
	}

	// NatWest CSVs use DD/MM/YYYY; reformat to ISO to line up with the
	// bookingDate the open banking feed reports.
	bits := strings.Split(data.Date, "/")
	if len(bits) != 3 {
		return "", fmt.Errorf("manual natwest: unparseable date %q", data.Date)
	}

	return TupleHash(
		fmt.Sprintf("%s-%s-%s", bits[2], bits[1], bits[0]),
		stripNonAlnum(data.Description),
		data.Value,
	), nil
}

func revolutRowHash(data *domain.RevolutRow) (string, error) {
	// Completed Date is absent for pending rows, so only the started
	// date, amount and type participate.
	if data.StartedDate == "" {
		return "", fmt.Errorf("manual revolut: %w: Started Date", ErrMissingField)
	}
	if data.Amount == "" {
		return "", fmt.Errorf("manual revolut: %w: Amount", ErrMissingField)
	}
	if data.Type == "" {
		return "", fmt.Errorf("manual revolut: %w: Type", ErrMissingField)
	}
	return TupleHash(data.StartedDate, data.Amount, data.Type), nil
}

func paypalRowHash(data *domain.PayPalRow) (string, error) {
	if data.Type == "Partner Fee" {
		// Associate the fee with the transaction it was charged for.
		if data.ReferenceTxnID == "" {
			return "", fmt.Errorf("manual paypal partner fee: %w: Reference Txn ID", ErrMissingField)
		}
		return data.ReferenceTxnID, nil
	}
	if data.TransactionID == "" {
		return "", fmt.Errorf("manual paypal: %w: Transaction ID", ErrMissingField)
	}
	return data.TransactionID, nil
}
