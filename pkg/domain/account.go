package domain

// HashingStrategy selects how raw transactions for an account are reduced
// to a content hash. Changing an account's strategy requires a rehash of
// its stored raw transactions.
type HashingStrategy string

const (
	StrategyTxid    HashingStrategy = "txid"
	StrategyPayPal  HashingStrategy = "paypal"
	StrategyNatWest HashingStrategy = "natwest"
	StrategyRevolut HashingStrategy = "revolut"
)

// Valid returns whether s is a known strategy.
func (s HashingStrategy) Valid() bool {
	switch s {
	case StrategyTxid, StrategyPayPal, StrategyNatWest, StrategyRevolut:
		return true
	}
	return false
}

type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`

	HashingStrategy HashingStrategy `json:"hashingStrategy"`

	// Uncontrolled accounts track money we don't manage directly
	// (eg. a pot held by a third party).
	Uncontrolled bool `json:"uncontrolled"`
}

// MatchAccount returns the first account trading in the given currency,
// or nil. Accounts are assumed to hold at most one controlled account per
// currency; with duplicates the first listed wins.
func MatchAccount(accounts []*Account, currency string) *Account {
	for _, a := range accounts {
		if a.Currency == currency {
			return a
		}
	}
	return nil
}
