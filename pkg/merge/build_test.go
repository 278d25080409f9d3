package merge

import (
	"context"
	"testing"
	"time"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/rules"
	"github.com/fint-dev/fint/pkg/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) store.Store {
	db, err := store.NewJSONFile("")
	require.Nil(t, err)
	return db
}

func rawWith(txid, hash string, seq int64, data domain.Payload) *domain.RawTransaction {
	source := domain.SourceOpenBanking
	switch data.(type) {
	case *domain.NatWestRow:
		source = domain.SourceManualNatWest
	case *domain.RevolutRow:
		source = domain.SourceManualRevolut
	case *domain.PayPalRow:
		source = domain.SourceManualPayPal
	}
	return &domain.RawTransaction{
		Key:  domain.Key{AccountID: "acc", Source: source, TransactionID: txid},
		Hash: hash,
		Seq:  seq,
		Data: data,
	}
}

func obData(amount string) *domain.OpenBankingData {
	return &domain.OpenBankingData{
		BookingDate:       "2024-02-01",
		TransactionAmount: domain.TransactionAmount{Amount: amount, Currency: "GBP"},
	}
}

func TestBuildGroupsByHash(t *testing.T) {
	db := testStore(t)
	ctx := context.Background()

	// the same purchase observed from two sources shares a hash
	_, err := db.InsertRaw(ctx, []*domain.RawTransaction{
		rawWith("ob1", "h1", 1, obData("-12.50")),
		rawWith("csv1", "h1", 2, &domain.NatWestRow{Date: "01/02/2024", Description: "TESCO", Value: "-12.50"}),
		rawWith("ob2", "h2", 3, obData("-4.20")),
	})
	require.Nil(t, err)

	made, err := NewBuilder(db, nil, zerolog.Nop()).Build(ctx, "acc")
	require.Nil(t, err)
	assert.Equal(t, 2, made)

	txns, err := db.TransactionsByAccount(ctx, "acc")
	require.Nil(t, err)
	require.Len(t, txns, 2)

	byHash := map[string]*domain.Transaction{}
	for _, tx := range txns {
		byHash[tx.Hash] = tx
	}
	require.Contains(t, byHash, "h1")
	assert.Equal(t, "-12.50", byHash["h1"].Amount)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), byHash["h1"].Date)
	assert.Equal(t, domain.CategoryNone, byHash["h1"].Metadata.Category)
	assert.NotEmpty(t, byHash["h1"].ID)
}

func TestBuildIsIdempotent(t *testing.T) {
	db := testStore(t)
	ctx := context.Background()
	builder := NewBuilder(db, nil, zerolog.Nop())

	_, err := db.InsertRaw(ctx, []*domain.RawTransaction{rawWith("ob1", "h1", 1, obData("-1.00"))})
	require.Nil(t, err)

	made, err := builder.Build(ctx, "acc")
	require.Nil(t, err)
	assert.Equal(t, 1, made)

	made, err = builder.Build(ctx, "acc")
	require.Nil(t, err)
	assert.Equal(t, 0, made)

	// new raw data under a new hash still builds
	_, err = db.InsertRaw(ctx, []*domain.RawTransaction{rawWith("ob2", "h2", 2, obData("-2.00"))})
	require.Nil(t, err)

	made, err = builder.Build(ctx, "acc")
	require.Nil(t, err)
	assert.Equal(t, 1, made)
}

func TestBuildPendingSemantics(t *testing.T) {
	db := testStore(t)
	ctx := context.Background()

	pending := rawWith("ob1", "h1", 1, obData("-1.00"))
	pending.Pending = true

	settled := rawWith("csv1", "h2", 2, obData("-2.00"))
	alsoPending := rawWith("ob2", "h2", 3, obData("-2.00"))
	alsoPending.Pending = true

	_, err := db.InsertRaw(ctx, []*domain.RawTransaction{pending, settled, alsoPending})
	require.Nil(t, err)

	_, err = NewBuilder(db, nil, zerolog.Nop()).Build(ctx, "acc")
	require.Nil(t, err)

	txns, err := db.TransactionsByAccount(ctx, "acc")
	require.Nil(t, err)
	byHash := map[string]*domain.Transaction{}
	for _, tx := range txns {
		byHash[tx.Hash] = tx
	}

	// pending only while every observation is pending
	assert.True(t, byHash["h1"].Pending)
	assert.False(t, byHash["h2"].Pending)
}

func TestBuildAppliesRules(t *testing.T) {
	db := testStore(t)
	ctx := context.Background()

	data := obData("-12.50")
	data.RemittanceInformationUnstructured = "TESCO STORES 3297"
	_, err := db.InsertRaw(ctx, []*domain.RawTransaction{rawWith("ob1", "h1", 1, data)})
	require.Nil(t, err)

	ruleset := []rules.Rule{
		{
			Match: &rules.Substring{Keys: []string{"remittanceInformationUnstructured"}, Substr: "tesco"},
			Set:   rules.Patch{Category: "groceries", Payee: "Tesco"},
		},
	}

	_, err = NewBuilder(db, ruleset, zerolog.Nop()).Build(ctx, "acc")
	require.Nil(t, err)

	txns, err := db.TransactionsByAccount(ctx, "acc")
	require.Nil(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "groceries", txns[0].Metadata.Category)
	assert.Equal(t, "Tesco", txns[0].Metadata.Payee)
}

func TestBuildExcludesBrokenGroups(t *testing.T) {
	db := testStore(t)
	ctx := context.Background()

	broken := obData("not a number")
	_, err := db.InsertRaw(ctx, []*domain.RawTransaction{
		rawWith("ob1", "h1", 1, broken),
		rawWith("ob2", "h2", 2, obData("-1.00")),
	})
	require.Nil(t, err)

	made, err := NewBuilder(db, nil, zerolog.Nop()).Build(ctx, "acc")

	require.Nil(t, err)
	assert.Equal(t, 1, made)

	txns, err := db.TransactionsByAccount(ctx, "acc")
	require.Nil(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "h2", txns[0].Hash)
}

func TestRecordDateFormats(t *testing.T) {
	cases := []struct {
		name string
		data domain.Payload
		want time.Time
	}{
		{
			name: "open banking ISO date",
			data: &domain.OpenBankingData{BookingDate: "2024-02-01"},
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "natwest day first",
			data: &domain.NatWestRow{Date: "01/02/2024"},
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "paypal month first",
			data: &domain.PayPalRow{Date: "01/02/2024"},
			want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "revolut timestamp",
			data: &domain.RevolutRow{CompletedDate: "2024-02-01 09:30:15"},
			want: time.Date(2024, 2, 1, 9, 30, 15, 0, time.UTC),
		},
		{
			name: "revolut bare date",
			data: &domain.RevolutRow{CompletedDate: "2024-02-01"},
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			date, err := recordDate(&domain.RawTransaction{Data: tc.data})
			require.Nil(t, err)
			assert.Equal(t, tc.want, date)
		})
	}
}

func TestExtractorsFirstSuccessWins(t *testing.T) {
	group := []*domain.RawTransaction{
		rawWith("bad", "h1", 1, &domain.OpenBankingData{}), // no date, no amount
		rawWith("ok", "h1", 2, obData("-9.99")),
	}

	date, err := extractDate(group)
	require.Nil(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), date)

	amount, err := extractAmount(group)
	require.Nil(t, err)
	assert.Equal(t, "-9.99", amount)
}

func TestPayPalAmountIsNet(t *testing.T) {
	amount, err := recordAmount(&domain.RawTransaction{
		Data: &domain.PayPalRow{Gross: "-10.00", Fee: "-0.35", Net: "-10.35"},
	})

	require.Nil(t, err)
	assert.Equal(t, "-10.35", amount)
}
