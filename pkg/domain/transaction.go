package domain

import (
	"encoding/json"
	"time"
)

// Metadata is category information attached to a canonical transaction by
// the rule engine.
type Metadata struct {
	Category string `json:"category"`
	Payee    string `json:"payee,omitempty"`
}

// CategoryNone is the category before any rule fires.
const CategoryNone = "uncategorised"

// Transaction is the canonical, deduplicated form of one real-world
// transaction. Exactly one exists per (accountId, hash) pair once the
// merge pass has run; it is never rewritten after that.
type Transaction struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`

	Date time.Time `json:"date"`
	Hash string    `json:"hash"`

	// Signed decimal string, as reported by the source.
	Amount  string `json:"amount"`
	Pending bool   `json:"pending"`

	Metadata Metadata `json:"metadata"`
}

func (t *Transaction) JSON() ([]byte, error) {
	return json.Marshal(t)
}
