package domain

import (
	"encoding/json"
	"fmt"
)

// Source identifies where a raw transaction record came from.
type Source string

const (
	SourceOpenBanking   Source = "open_banking"
	SourceManualNatWest Source = "manual_natwest"
	SourceManualRevolut Source = "manual_revolut"
	SourceManualPayPal  Source = "manual_paypal"
)

// Key is the composite identity of a raw transaction record. Two imports
// of the same provider record collide on this key; that collision is how
// re-ingestion stays idempotent.
type Key struct {
	AccountID     string `json:"accountId"`
	Source        Source `json:"source"`
	TransactionID string `json:"transactionId"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.AccountID, k.Source, k.TransactionID)
}

// Payload is one source-shaped observation of a transaction. It is a
// closed union: exactly one implementation per Source.
type Payload interface {
	Source() Source

	// Currency the record trades in, used to pick a target account.
	Currency() string

	// Document returns a generic map/slice/scalar view of the payload
	// for the rule-matching engine. Keys follow the wire/CSV names.
	Document() map[string]interface{}
}

// RawTransaction is a stored raw record: composite key, dedup hash,
// pending flag and the source payload. Seq records insertion order so
// rehashing can replay records in the order they were first seen.
type RawTransaction struct {
	Key     Key
	Hash    string
	Pending bool
	Seq     int64
	Data    Payload
}

type rawEnvelope struct {
	Key     Key             `json:"key"`
	Hash    string          `json:"hash"`
	Pending bool            `json:"pending"`
	Seq     int64           `json:"seq"`
	Data    json.RawMessage `json:"data"`
}

func (r *RawTransaction) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&rawEnvelope{
		Key:     r.Key,
		Hash:    r.Hash,
		Pending: r.Pending,
		Seq:     r.Seq,
		Data:    data,
	})
}

func (r *RawTransaction) UnmarshalJSON(b []byte) error {
	env := &rawEnvelope{}
	err := json.Unmarshal(b, env)
	if err != nil {
		return err
	}

	data, err := DecodePayload(env.Key.Source, env.Data)
	if err != nil {
		return err
	}

	r.Key = env.Key
	r.Hash = env.Hash
	r.Pending = env.Pending
	r.Seq = env.Seq
	r.Data = data
	return nil
}

// DecodePayload unmarshals a payload blob into the variant for the given
// source.
func DecodePayload(source Source, data []byte) (Payload, error) {
	var p Payload
	switch source {
	case SourceOpenBanking:
		p = &OpenBankingData{}
	case SourceManualNatWest:
		p = &NatWestRow{}
	case SourceManualRevolut:
		p = &RevolutRow{}
	case SourceManualPayPal:
		p = &PayPalRow{}
	default:
		return nil, fmt.Errorf("unknown raw transaction source %q", source)
	}
	return p, json.Unmarshal(data, p)
}

// document round-trips a payload through JSON to get the generic tree the
// rule engine walks. Payloads are small; this is not a hot path.
func document(v interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	data, err := json.Marshal(v)
	if err != nil {
		return out
	}
	json.Unmarshal(data, &out)
	return out
}

// Amount as reported by an open banking provider.
type TransactionAmount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// OpenBankingData is the provider transaction schema (Berlin Group style,
// as served by GoCardless bank-account-data). Only fields we hash, date or
// match on are typed; everything is optional on the wire.
type OpenBankingData struct {
	TransactionID         string `json:"transactionId,omitempty"`
	InternalTransactionID string `json:"internalTransactionId,omitempty"`

	TransactionAmount TransactionAmount `json:"transactionAmount"`

	BookingDate     string `json:"bookingDate,omitempty"`
	ValueDate       string `json:"valueDate,omitempty"`
	BookingDateTime string `json:"bookingDateTime,omitempty"`
	ValueDateTime   string `json:"valueDateTime,omitempty"`

	CreditorName string `json:"creditorName,omitempty"`
	DebtorName   string `json:"debtorName,omitempty"`

	RemittanceInformationUnstructured      string   `json:"remittanceInformationUnstructured,omitempty"`
	RemittanceInformationUnstructuredArray []string `json:"remittanceInformationUnstructuredArray,omitempty"`
	RemittanceInformationStructured        string   `json:"remittanceInformationStructured,omitempty"`

	AdditionalInformation          string `json:"additionalInformation,omitempty"`
	BankTransactionCode            string `json:"bankTransactionCode,omitempty"`
	ProprietaryBankTransactionCode string `json:"proprietaryBankTransactionCode,omitempty"`
}

func (d *OpenBankingData) Source() Source   { return SourceOpenBanking }
func (d *OpenBankingData) Currency() string { return d.TransactionAmount.Currency }

func (d *OpenBankingData) Document() map[string]interface{} { return document(d) }

// NatWestRow is one row of a NatWest CSV export. Column names are kept
// verbatim so category rules written against the CSV keep working.
type NatWestRow struct {
	Date          string `json:"Date"`
	Description   string `json:"Description"`
	Type          string `json:"Type"`
	Value         string `json:"Value"`
	Balance       string `json:"Balance"`
	AccountName   string `json:"Account Name"`
	AccountNumber string `json:"Account Number"`
}

func (d *NatWestRow) Source() Source   { return SourceManualNatWest }
func (d *NatWestRow) Currency() string { return "GBP" }

func (d *NatWestRow) Document() map[string]interface{} { return document(d) }

// RevolutRow is one row of a Revolut CSV export.
type RevolutRow struct {
	Type          string `json:"Type"`
	Product       string `json:"Product"`
	StartedDate   string `json:"Started Date"`
	CompletedDate string `json:"Completed Date"`
	Description   string `json:"Description"`
	Amount        string `json:"Amount"`
	Fee           string `json:"Fee"`
	CurrencyCode  string `json:"Currency"`
	State         string `json:"State"`
	Balance       string `json:"Balance"`
}

func (d *RevolutRow) Source() Source { return SourceManualRevolut }

// Revolut exports don't carry a currency per row we trust for account
// matching; statements are pulled per GBP account.
func (d *RevolutRow) Currency() string { return "GBP" }

func (d *RevolutRow) Document() map[string]interface{} { return document(d) }

// PayPalRow is one row of a PayPal activity CSV export.
type PayPalRow struct {
	Date     string `json:"Date"`
	Time     string `json:"Time"`
	TimeZone string `json:"Time Zone"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
	Status   string `json:"Status"`

	CurrencyCode string `json:"Currency"`
	Gross        string `json:"Gross"`
	Fee          string `json:"Fee"`
	Net          string `json:"Net"`

	FromEmailAddress string `json:"From Email Address"`
	ToEmailAddress   string `json:"To Email Address"`

	TransactionID    string `json:"Transaction ID"`
	ReferenceTxnID   string `json:"Reference Txn ID"`

	Balance string `json:"Balance"`
	Subject string `json:"Subject"`
	Note    string `json:"Note"`

	// "Credit" | "Debit" | "Memo"
	BalanceImpact string `json:"Balance Impact"`
}

func (d *PayPalRow) Source() Source   { return SourceManualPayPal }
func (d *PayPalRow) Currency() string { return d.CurrencyCode }

func (d *PayPalRow) Document() map[string]interface{} { return document(d) }
