package ingest

import (
	"context"
	"testing"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/provider"
	"github.com/fint-dev/fint/pkg/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(t *testing.T) (*Pipeline, store.Store) {
	db, err := store.NewJSONFile("")
	require.Nil(t, err)
	return NewPipeline(db, zerolog.Nop()), db
}

func gbpAccount(id string, strategy domain.HashingStrategy) *domain.Account {
	return &domain.Account{ID: id, Currency: "GBP", HashingStrategy: strategy}
}

func openBankingBatch(txids ...string) []*domain.RawTransaction {
	batch := make([]*domain.RawTransaction, 0, len(txids))
	for _, txid := range txids {
		batch = append(batch, &domain.RawTransaction{
			Key: domain.Key{Source: domain.SourceOpenBanking, TransactionID: txid},
			Data: &domain.OpenBankingData{
				TransactionID:     txid,
				BookingDate:       "2024-02-01",
				TransactionAmount: domain.TransactionAmount{Amount: "-1.00", Currency: "GBP"},
			},
		})
	}
	return batch
}

func natwestBatch(rows ...domain.NatWestRow) []*domain.RawTransaction {
	batch := make([]*domain.RawTransaction, 0, len(rows))
	for i, row := range rows {
		r := row
		batch = append(batch, &domain.RawTransaction{
			Key:  domain.Key{Source: domain.SourceManualNatWest, TransactionID: string(rune('a' + i))},
			Data: &r,
		})
	}
	return batch
}

func TestIngestResolvesAccountByCurrency(t *testing.T) {
	p, db := testPipeline(t)
	accounts := []*domain.Account{
		{ID: "eur", Currency: "EUR", HashingStrategy: domain.StrategyTxid},
		gbpAccount("gbp", domain.StrategyTxid),
	}

	rep, err := p.Ingest(context.Background(), openBankingBatch("t1"), accounts)
	require.Nil(t, err)
	assert.Equal(t, 1, rep.Inserted)

	raws, err := db.RawByAccount(context.Background(), "gbp")
	require.Nil(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "t1", raws[0].Hash) // txid strategy keeps the id
}

func TestIngestDropsRecordsWithNoAccount(t *testing.T) {
	p, _ := testPipeline(t)
	accounts := []*domain.Account{{ID: "eur", Currency: "EUR", HashingStrategy: domain.StrategyTxid}}

	rep, err := p.Ingest(context.Background(), openBankingBatch("t1", "t2"), accounts)

	require.Nil(t, err)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 2, rep.Dropped)
}

func TestIngestIsIdempotent(t *testing.T) {
	p, _ := testPipeline(t)
	accounts := []*domain.Account{gbpAccount("gbp", domain.StrategyTxid)}
	ctx := context.Background()

	rep, err := p.Ingest(ctx, openBankingBatch("t1", "t2"), accounts)
	require.Nil(t, err)
	assert.Equal(t, 2, rep.Inserted)

	rep, err = p.Ingest(ctx, openBankingBatch("t1", "t2"), accounts)
	require.Nil(t, err)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 2, rep.Duplicates)
}

func TestIngestDisambiguatesIdenticalManualRows(t *testing.T) {
	p, db := testPipeline(t)
	accounts := []*domain.Account{gbpAccount("gbp", domain.StrategyNatWest)}
	ctx := context.Background()

	// two legitimately identical rows, eg. the same coffee twice in a day
	row := domain.NatWestRow{Date: "01/02/2024", Description: "COFFEE", Value: "-3.00"}
	rep, err := p.Ingest(ctx, natwestBatch(row, row), accounts)
	require.Nil(t, err)
	assert.Equal(t, 2, rep.Inserted)

	raws, err := db.RawByAccount(ctx, "gbp")
	require.Nil(t, err)
	require.Len(t, raws, 2)
	assert.NotEqual(t, raws[0].Hash, raws[1].Hash)

	// replaying the batch reproduces the same keys: everything dedups
	rep, err = p.Ingest(ctx, natwestBatch(row, row), accounts)
	require.Nil(t, err)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 2, rep.Duplicates)
}

func TestIngestAbortsOnUnknownStrategy(t *testing.T) {
	p, _ := testPipeline(t)
	accounts := []*domain.Account{gbpAccount("gbp", "mystery")}

	_, err := p.Ingest(context.Background(), openBankingBatch("t1"), accounts)

	assert.NotNil(t, err)
}

func TestIngestExcludesUnhashableRecords(t *testing.T) {
	p, _ := testPipeline(t)
	accounts := []*domain.Account{gbpAccount("gbp", domain.StrategyNatWest)}

	batch := natwestBatch(
		domain.NatWestRow{Date: "01/02/2024", Description: "OK", Value: "-1.00"},
		domain.NatWestRow{Date: "01/02/2024", Description: "NO VALUE"},
	)
	rep, err := p.Ingest(context.Background(), batch, accounts)

	require.Nil(t, err)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Failed)
}

func TestRehashAccount(t *testing.T) {
	p, db := testPipeline(t)
	ctx := context.Background()

	account := gbpAccount("gbp", domain.StrategyTxid)
	require.Nil(t, db.CreateAccount(ctx, account))

	batch := openBankingBatch("t1", "t2")
	batch[0].Data.(*domain.OpenBankingData).RemittanceInformationUnstructured = "COFFEE"
	batch[1].Data.(*domain.OpenBankingData).RemittanceInformationUnstructured = "LUNCH"

	_, err := p.Ingest(ctx, batch, []*domain.Account{account})
	require.Nil(t, err)

	// nothing changed yet, rehash is a no-op
	changed, err := p.RehashAccount(ctx, "gbp")
	require.Nil(t, err)
	assert.Equal(t, 0, changed)

	require.Nil(t, db.SetHashingStrategy(ctx, "gbp", domain.StrategyNatWest))

	changed, err = p.RehashAccount(ctx, "gbp")
	require.Nil(t, err)
	assert.Equal(t, 2, changed)

	raws, err := db.RawByAccount(ctx, "gbp")
	require.Nil(t, err)
	for _, raw := range raws {
		assert.NotEqual(t, raw.Key.TransactionID, raw.Hash)
	}

	// rehash is itself idempotent
	changed, err = p.RehashAccount(ctx, "gbp")
	require.Nil(t, err)
	assert.Equal(t, 0, changed)
}

func TestRehashUnknownAccount(t *testing.T) {
	p, _ := testPipeline(t)

	_, err := p.RehashAccount(context.Background(), "nope")

	assert.NotNil(t, err)
}

// fakeProvider serves a canned feed.
type fakeProvider struct {
	feed *provider.Feed
	err  error
}

func (f *fakeProvider) Institutions(ctx context.Context, country string) ([]*provider.Institution, error) {
	return nil, nil
}

func (f *fakeProvider) CreateRequisition(ctx context.Context, institutionID, redirect string, maxHistoricalDays int) (*provider.RequisitionRequest, error) {
	return nil, nil
}

func (f *fakeProvider) Requisitions(ctx context.Context) ([]*provider.Requisition, error) {
	return nil, nil
}

func (f *fakeProvider) Requisition(ctx context.Context, id string) (*provider.Requisition, error) {
	return nil, nil
}

func (f *fakeProvider) DeleteRequisition(ctx context.Context, id string) error { return nil }

func (f *fakeProvider) AccountDetails(ctx context.Context, accountID string) (*provider.BankAccount, error) {
	return nil, nil
}

func (f *fakeProvider) Transactions(ctx context.Context, accountID string) (*provider.Feed, error) {
	return f.feed, f.err
}

func obData(txid, amount string) *domain.OpenBankingData {
	return &domain.OpenBankingData{
		TransactionID:     txid,
		BookingDate:       "2024-02-01",
		ValueDate:         "2024-02-01",
		TransactionAmount: domain.TransactionAmount{Amount: amount, Currency: "GBP"},
	}
}

func TestSyncAccountReplacesPendingSnapshot(t *testing.T) {
	p, db := testPipeline(t)
	ctx := context.Background()

	account := gbpAccount("gbp", domain.StrategyTxid)
	require.Nil(t, db.CreateAccount(ctx, account))

	prov := &fakeProvider{feed: &provider.Feed{
		Booked:  []*domain.OpenBankingData{obData("t1", "-1.00")},
		Pending: []*domain.OpenBankingData{obData("", "-2.00")},
	}}

	rep, err := p.SyncAccount(ctx, prov, "prov-acc", []string{"gbp"})
	require.Nil(t, err)
	assert.Equal(t, 2, rep.Inserted)

	raws, err := db.RawByAccount(ctx, "gbp")
	require.Nil(t, err)
	require.Len(t, raws, 2)

	// next sync: the pending record settled with a real id
	prov.feed = &provider.Feed{
		Booked: []*domain.OpenBankingData{obData("t1", "-1.00"), obData("t2", "-2.00")},
	}

	rep, err = p.SyncAccount(ctx, prov, "prov-acc", []string{"gbp"})
	require.Nil(t, err)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Duplicates)

	raws, err = db.RawByAccount(ctx, "gbp")
	require.Nil(t, err)
	require.Len(t, raws, 2)
	for _, raw := range raws {
		assert.False(t, raw.Pending)
	}
}

func TestSyncAccountRejectsUnidentifiableBookedRecords(t *testing.T) {
	p, db := testPipeline(t)
	ctx := context.Background()
	require.Nil(t, db.CreateAccount(ctx, gbpAccount("gbp", domain.StrategyTxid)))

	prov := &fakeProvider{feed: &provider.Feed{
		Booked: []*domain.OpenBankingData{obData("", "-1.00")},
	}}

	_, err := p.SyncAccount(ctx, prov, "prov-acc", []string{"gbp"})

	assert.NotNil(t, err)
}

func TestSyncAccountUnknownAccount(t *testing.T) {
	p, _ := testPipeline(t)

	_, err := p.SyncAccount(context.Background(), &fakeProvider{}, "prov-acc", []string{"nope"})

	assert.NotNil(t, err)
}
