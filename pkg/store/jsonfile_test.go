package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fint-dev/fint/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRaw(accountID, txid string, seq int64) *domain.RawTransaction {
	return &domain.RawTransaction{
		Key:  domain.Key{AccountID: accountID, Source: domain.SourceManualNatWest, TransactionID: txid},
		Hash: "hash-" + txid,
		Seq:  seq,
		Data: &domain.NatWestRow{Date: "01/02/2024", Description: "TEST", Value: "-1.00"},
	}
}

func TestJSONFileAccounts(t *testing.T) {
	db, err := NewJSONFile("")
	require.Nil(t, err)
	ctx := context.Background()

	account := &domain.Account{ID: "a1", Name: "Current", Currency: "GBP", HashingStrategy: domain.StrategyNatWest}
	require.Nil(t, db.CreateAccount(ctx, account))

	// duplicate ids are rejected
	assert.NotNil(t, db.CreateAccount(ctx, &domain.Account{ID: "a1"}))

	found, err := db.Account(ctx, "a1")
	require.Nil(t, err)
	assert.Equal(t, "Current", found.Name)

	// unknown id is nil, nil
	found, err = db.Account(ctx, "nope")
	require.Nil(t, err)
	assert.Nil(t, found)

	all, err := db.Accounts(ctx)
	require.Nil(t, err)
	assert.Len(t, all, 1)

	require.Nil(t, db.SetHashingStrategy(ctx, "a1", domain.StrategyTxid))
	found, err = db.Account(ctx, "a1")
	require.Nil(t, err)
	assert.Equal(t, domain.StrategyTxid, found.HashingStrategy)

	assert.NotNil(t, db.SetHashingStrategy(ctx, "nope", domain.StrategyTxid))
}

func TestJSONFileInsertRawSkipsDuplicates(t *testing.T) {
	db, err := NewJSONFile("")
	require.Nil(t, err)
	ctx := context.Background()

	inserted, err := db.InsertRaw(ctx, []*domain.RawTransaction{
		testRaw("a1", "t1", 1),
		testRaw("a1", "t2", 2),
	})
	require.Nil(t, err)
	assert.Equal(t, 2, inserted)

	// re-ingesting the same keys writes nothing new
	inserted, err = db.InsertRaw(ctx, []*domain.RawTransaction{
		testRaw("a1", "t1", 3),
		testRaw("a1", "t3", 4),
	})
	require.Nil(t, err)
	assert.Equal(t, 1, inserted)

	raws, err := db.RawByAccount(ctx, "a1")
	require.Nil(t, err)
	assert.Len(t, raws, 3)
}

func TestJSONFileRawByAccountSortsBySeq(t *testing.T) {
	db, err := NewJSONFile("")
	require.Nil(t, err)
	ctx := context.Background()

	_, err = db.InsertRaw(ctx, []*domain.RawTransaction{
		testRaw("a1", "late", 30),
		testRaw("a1", "early", 10),
		testRaw("a2", "other", 20),
		testRaw("a1", "middle", 20),
	})
	require.Nil(t, err)

	raws, err := db.RawByAccount(ctx, "a1")
	require.Nil(t, err)
	require.Len(t, raws, 3)
	assert.Equal(t, "early", raws[0].Key.TransactionID)
	assert.Equal(t, "middle", raws[1].Key.TransactionID)
	assert.Equal(t, "late", raws[2].Key.TransactionID)
}

func TestJSONFileDeletePending(t *testing.T) {
	db, err := NewJSONFile("")
	require.Nil(t, err)
	ctx := context.Background()

	pending := testRaw("a1", "p1", 1)
	pending.Pending = true
	otherPending := testRaw("a2", "p2", 2)
	otherPending.Pending = true

	_, err = db.InsertRaw(ctx, []*domain.RawTransaction{
		pending,
		otherPending,
		testRaw("a1", "settled", 3),
	})
	require.Nil(t, err)

	require.Nil(t, db.DeletePending(ctx, "a1"))

	raws, err := db.RawByAccount(ctx, "a1")
	require.Nil(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "settled", raws[0].Key.TransactionID)

	// other accounts keep their pending records
	raws, err = db.RawByAccount(ctx, "a2")
	require.Nil(t, err)
	assert.Len(t, raws, 1)
}

func TestJSONFileUpdateHash(t *testing.T) {
	db, err := NewJSONFile("")
	require.Nil(t, err)
	ctx := context.Background()

	raw := testRaw("a1", "t1", 1)
	_, err = db.InsertRaw(ctx, []*domain.RawTransaction{raw})
	require.Nil(t, err)

	require.Nil(t, db.UpdateHash(ctx, raw.Key, "newhash"))

	raws, err := db.RawByAccount(ctx, "a1")
	require.Nil(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "newhash", raws[0].Hash)

	assert.NotNil(t, db.UpdateHash(ctx, domain.Key{AccountID: "nope"}, "x"))
}

func TestJSONFileTransactions(t *testing.T) {
	db, err := NewJSONFile("")
	require.Nil(t, err)
	ctx := context.Background()

	tx := &domain.Transaction{ID: "tx1", AccountID: "a1", Hash: "h1", Amount: "-1.00"}
	require.Nil(t, db.InsertTransaction(ctx, tx))
	assert.NotNil(t, db.InsertTransaction(ctx, tx))

	require.Nil(t, db.InsertTransaction(ctx, &domain.Transaction{ID: "tx2", AccountID: "a2"}))

	txns, err := db.TransactionsByAccount(ctx, "a1")
	require.Nil(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "h1", txns[0].Hash)
}

func TestJSONFilePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fint.json")
	ctx := context.Background()

	db, err := NewJSONFile(path)
	require.Nil(t, err)

	require.Nil(t, db.CreateAccount(ctx, &domain.Account{ID: "a1", Currency: "GBP", HashingStrategy: domain.StrategyNatWest}))
	_, err = db.InsertRaw(ctx, []*domain.RawTransaction{testRaw("a1", "t1", 1)})
	require.Nil(t, err)
	require.Nil(t, db.InsertTransaction(ctx, &domain.Transaction{ID: "tx1", AccountID: "a1"}))

	reopened, err := NewJSONFile(path)
	require.Nil(t, err)

	accounts, err := reopened.Accounts(ctx)
	require.Nil(t, err)
	assert.Len(t, accounts, 1)

	raws, err := reopened.RawByAccount(ctx, "a1")
	require.Nil(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "hash-t1", raws[0].Hash)

	// payloads come back typed for their source
	row, ok := raws[0].Data.(*domain.NatWestRow)
	require.True(t, ok)
	assert.Equal(t, "01/02/2024", row.Date)

	txns, err := reopened.TransactionsByAccount(ctx, "a1")
	require.Nil(t, err)
	assert.Len(t, txns, 1)
}
