package ingest

import (
	"context"
	"fmt"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/hashing"
)

// RehashAccount recomputes every stored raw transaction's dedup hash
// under the account's current hashing strategy, persisting only the ones
// that changed. Run this after changing an account's strategy.
//
// Disambiguation counters are rebuilt from scratch, one per source, over
// the records in stored order - the same relative order the original
// ingestion runs saw - so stable records keep their keys.
func (p *Pipeline) RehashAccount(ctx context.Context, accountID string) (int, error) {
	account, err := p.store.Account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, fmt.Errorf("no such account %s", accountID)
	}

	raws, err := p.store.RawByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	required := hashing.CounterRequired(raws, []*domain.Account{account})
	counters := map[domain.Source]*hashing.Counter{}

	changed := 0
	for _, raw := range raws {
		counter := counters[raw.Key.Source]
		if counter == nil {
			counter = hashing.NewCounter(required)
			counters[raw.Key.Source] = counter
		}

		content, err := hashing.ContentHash(account, raw)
		if err != nil {
			p.log.Error().Err(err).
				Str("transactionId", raw.Key.TransactionID).
				Str("source", string(raw.Key.Source)).
				Msg("cannot rehash record, leaving hash as is")
			continue
		}

		newHash := counter.Key(content)
		if newHash == raw.Hash {
			continue
		}

		err = p.store.UpdateHash(ctx, raw.Key, newHash)
		if err != nil {
			return changed, fmt.Errorf("updating hash for %s: %w", raw.Key, err)
		}
		changed++
	}

	p.log.Info().Str("accountId", accountID).Int("changed", changed).Msg("rehashed account")
	return changed, nil
}
