package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/hashing"
	"github.com/fint-dev/fint/pkg/store"

	"github.com/rs/zerolog"
)

// Pipeline resolves raw transaction batches to accounts, assigns dedup
// hashes and performs the idempotent bulk insert.
type Pipeline struct {
	store store.Store
	log   zerolog.Logger
}

func NewPipeline(s store.Store, log zerolog.Logger) *Pipeline {
	return &Pipeline{store: s, log: log}
}

// Report says what happened to a batch. Dropped records (no account in
// the record's currency) are by design not an error, but they are counted
// and logged so they aren't lost silently.
type Report struct {
	Inserted   int
	Duplicates int
	Dropped    int
	Failed     int
}

func (r *Report) String() string {
	return fmt.Sprintf("inserted=%d duplicates=%d dropped=%d failed=%d", r.Inserted, r.Duplicates, r.Dropped, r.Failed)
}

// Ingest resolves each record in the batch to the first candidate account
// matching its currency, computes its dedup hash through one batch-scoped
// disambiguation counter, and bulk-inserts the survivors. Duplicate
// composite keys are skipped by the store; re-ingesting a seen batch is a
// no-op. Records that can't be hashed are excluded and counted; an
// unknown hashing strategy aborts the whole run.
func (p *Pipeline) Ingest(ctx context.Context, batch []*domain.RawTransaction, accounts []*domain.Account) (*Report, error) {
	report := &Report{}
	counter := hashing.NewCounter(hashing.CounterRequired(batch, accounts))

	base := time.Now().UnixNano()
	resolved := make([]*domain.RawTransaction, 0, len(batch))

	for i, raw := range batch {
		account := domain.MatchAccount(accounts, raw.Data.Currency())
		if account == nil {
			report.Dropped++
			p.log.Warn().
				Str("transactionId", raw.Key.TransactionID).
				Str("source", string(raw.Key.Source)).
				Str("currency", raw.Data.Currency()).
				Msg("no account for currency, dropping record")
			continue
		}
		raw.Key.AccountID = account.ID

		content, err := hashing.ContentHash(account, raw)
		if errors.Is(err, hashing.ErrUnknownStrategy) {
			return report, fmt.Errorf("account %s: %w", account.ID, err)
		}
		if err != nil {
			report.Failed++
			p.log.Error().Err(err).
				Str("transactionId", raw.Key.TransactionID).
				Str("source", string(raw.Key.Source)).
				Msg("cannot hash record, excluding from batch")
			continue
		}

		raw.Hash = counter.Key(content)
		raw.Seq = base + int64(i)
		resolved = append(resolved, raw)
	}

	inserted, err := p.store.InsertRaw(ctx, resolved)
	if err != nil {
		return report, fmt.Errorf("inserting raw transactions: %w", err)
	}

	report.Inserted = inserted
	report.Duplicates = len(resolved) - inserted
	p.log.Info().
		Int("inserted", report.Inserted).
		Int("duplicates", report.Duplicates).
		Int("dropped", report.Dropped).
		Int("failed", report.Failed).
		Msg("ingested batch")
	return report, nil
}
