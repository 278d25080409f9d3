package ingest

import (
	"context"
	"fmt"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/provider"
)

// SyncAccount pulls the live feed for one provider account and ingests it
// into the given candidate accounts. The stored pending snapshot for each
// candidate is deleted first: pending records are provisional and each
// sync supersedes the last. Settled records are never deleted here.
//
// A failed provider call aborts the sync; the caller retries the whole
// account, there is no partial resume.
func (p *Pipeline) SyncAccount(ctx context.Context, prov provider.Provider, providerAccountID string, accountIDs []string) (*Report, error) {
	accounts := make([]*domain.Account, 0, len(accountIDs))
	for _, id := range accountIDs {
		account, err := p.store.Account(ctx, id)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("no such account %s", id)
		}
		accounts = append(accounts, account)
	}

	feed, err := prov.Transactions(ctx, providerAccountID)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions for %s: %w", providerAccountID, err)
	}
	p.log.Info().
		Str("providerAccountId", providerAccountID).
		Int("booked", len(feed.Booked)).
		Int("pending", len(feed.Pending)).
		Msg("fetched provider feed")

	// Booked records must be identifiable or nothing downstream works.
	for _, data := range feed.Booked {
		if data.TransactionID == "" && data.InternalTransactionID == "" {
			return nil, fmt.Errorf("booked record with no transactionId or internalTransactionId")
		}
	}

	for _, id := range accountIDs {
		err = p.store.DeletePending(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("deleting pending snapshot for %s: %w", id, err)
		}
	}

	batch := make([]*domain.RawTransaction, 0, len(feed.Booked)+len(feed.Pending))
	for _, data := range feed.Booked {
		batch = append(batch, &domain.RawTransaction{
			Key: domain.Key{
				Source:        domain.SourceOpenBanking,
				TransactionID: pickID(data, ""),
			},
			Pending: false,
			Data:    data,
		})
	}
	for i, data := range feed.Pending {
		// Pending records may have no id yet; synthesize a provisional
		// one. The whole pending snapshot is replaced next sync anyway.
		batch = append(batch, &domain.RawTransaction{
			Key: domain.Key{
				Source:        domain.SourceOpenBanking,
				TransactionID: pickID(data, fmt.Sprintf("%s-%d", data.ValueDate, i)),
			},
			Pending: true,
			Data:    data,
		})
	}

	return p.Ingest(ctx, batch, accounts)
}

func pickID(data *domain.OpenBankingData, fallback string) string {
	if data.TransactionID != "" {
		return data.TransactionID
	}
	if data.InternalTransactionID != "" {
		return data.InternalTransactionID
	}
	return fallback
}
