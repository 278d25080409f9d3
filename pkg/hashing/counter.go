package hashing

import (
	"github.com/fint-dev/fint/pkg/domain"
)

// Counter disambiguates content-identical records within one processing
// run. Strategies that hash transaction content (rather than a provider
// id) can legitimately collide: two identical coffee purchases on the
// same day produce the same content hash but are distinct transactions.
//
// The counter tracks how many times each content hash has been seen this
// run and folds the occurrence index into the final dedup key. Replaying
// the same records in the same order reproduces the same keys, which is
// what makes rehashing safe. One Counter per run; never share or reuse.
type Counter struct {
	required bool
	seen     map[string]int
}

// NewCounter returns a fresh counter. If required is false the counter is
// the identity function: id-based strategies are assumed collision-free.
func NewCounter(required bool) *Counter {
	return &Counter{
		required: required,
		seen:     map[string]int{},
	}
}

// Required reports whether this counter wraps hashes at all.
func (c *Counter) Required() bool { return c.required }

// Key consumes one occurrence of contentHash and returns the dedup key
// for it. Call exactly once per record, in batch order.
func (c *Counter) Key(contentHash string) string {
	if !c.required {
		return contentHash
	}
	c.seen[contentHash]++
	return occurrenceHash(contentHash, c.seen[contentHash])
}

// CounterRequired decides, for a whole batch at once, whether dedup keys
// need occurrence disambiguation. The decision must be uniform across a
// run - mixing wrapped and unwrapped keys would split groups - so it is
// taken against the full candidate set:
//
//   - manual NatWest / Revolut rows always need it
//   - open banking records need it when their matched account uses a
//     content-derived strategy (natwest, revolut)
//   - id-based strategies (txid, paypal, manual paypal) never do
func CounterRequired(batch []*domain.RawTransaction, accounts []*domain.Account) bool {
	for _, raw := range batch {
		switch raw.Key.Source {
		case domain.SourceManualNatWest, domain.SourceManualRevolut:
			return true
		case domain.SourceOpenBanking:
			account := domain.MatchAccount(accounts, raw.Data.Currency())
			if account == nil {
				continue
			}
			switch account.HashingStrategy {
			case domain.StrategyNatWest, domain.StrategyRevolut:
				return true
			}
		}
	}
	return false
}
