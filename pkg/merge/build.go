package merge

import (
	"context"
	"fmt"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/rules"
	"github.com/fint-dev/fint/pkg/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Builder folds an account's raw transactions into canonical ones: group
// by dedup hash, one canonical transaction per group.
type Builder struct {
	store store.Store
	rules []rules.Rule
	log   zerolog.Logger
}

func NewBuilder(s store.Store, ruleset []rules.Rule, log zerolog.Logger) *Builder {
	return &Builder{store: s, rules: ruleset, log: log}
}

// Build is idempotent: groups whose hash already has a canonical
// transaction are skipped outright, so re-running over unchanged data
// creates nothing. There is no update-in-place; if raw data under an
// already-built hash changes later the canonical record goes stale.
// TODO: rebuild canonical pending records once their raws settle.
func (b *Builder) Build(ctx context.Context, accountID string) (int, error) {
	raws, err := b.store.RawByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	existing, err := b.store.TransactionsByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	built := map[string]bool{}
	for _, t := range existing {
		built[t.Hash] = true
	}

	// Group by hash, preserving first-seen order of both groups and
	// the records inside each group.
	order := []string{}
	groups := map[string][]*domain.RawTransaction{}
	for _, raw := range raws {
		if _, ok := groups[raw.Hash]; !ok {
			order = append(order, raw.Hash)
		}
		groups[raw.Hash] = append(groups[raw.Hash], raw)
	}

	made := 0
	for _, hash := range order {
		if built[hash] {
			b.log.Debug().Str("hash", hash).Msg("skip, already built")
			continue
		}
		group := groups[hash]

		date, err := extractDate(group)
		if err != nil {
			b.log.Error().Err(err).Str("hash", hash).Msg("no usable date in group, excluding")
			continue
		}

		amount, err := extractAmount(group)
		if err != nil {
			b.log.Error().Err(err).Str("hash", hash).Msg("no usable amount in group, excluding")
			continue
		}

		tx := &domain.Transaction{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Date:      date,
			Hash:      hash,
			Amount:    amount,
			Pending:   allPending(group),
			Metadata:  rules.Categorize(group, b.rules),
		}

		if tx.Metadata.Category == domain.CategoryNone {
			b.log.Debug().Str("hash", hash).Str("amount", amount).Msg("uncategorised transaction")
		}

		err = b.store.InsertTransaction(ctx, tx)
		if err != nil {
			return made, fmt.Errorf("inserting transaction for hash %s: %w", hash, err)
		}
		made++
	}

	b.log.Info().Str("accountId", accountID).Int("built", made).Int("groups", len(order)).Msg("built canonical transactions")
	return made, nil
}

// allPending: a canonical transaction stays pending only while every raw
// observation of it is pending.
func allPending(group []*domain.RawTransaction) bool {
	for _, raw := range group {
		if !raw.Pending {
			return false
		}
	}
	return true
}
