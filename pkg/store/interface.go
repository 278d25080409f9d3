package store

import (
	"context"

	"github.com/fint-dev/fint/pkg/domain"
)

// AccountStore is the account directory.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	Accounts(ctx context.Context) ([]*domain.Account, error)

	// Account returns nil, nil when the id is unknown.
	Account(ctx context.Context, id string) (*domain.Account, error)

	// SetHashingStrategy changes an account's strategy. The caller is
	// expected to rehash the account's raw transactions afterwards.
	SetHashingStrategy(ctx context.Context, id string, strategy domain.HashingStrategy) error
}

// RawStore holds raw transaction records keyed by their composite
// (accountId, source, transactionId) identity.
type RawStore interface {
	// InsertRaw bulk-inserts records, silently skipping any whose
	// composite key already exists, and returns how many were actually
	// written. Re-ingesting a seen batch is expected to skip everything.
	InsertRaw(ctx context.Context, raws []*domain.RawTransaction) (int, error)

	// RawByAccount returns an account's raw records in stored (Seq)
	// order. Rehashing depends on this order being stable.
	RawByAccount(ctx context.Context, accountID string) ([]*domain.RawTransaction, error)

	// DeletePending removes an account's pending snapshot ahead of a
	// fresh sync. Settled records are never touched.
	DeletePending(ctx context.Context, accountID string) error

	UpdateHash(ctx context.Context, key domain.Key, hash string) error
}

// TransactionStore holds canonical transactions.
type TransactionStore interface {
	TransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error)
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
}

type Store interface {
	AccountStore
	RawStore
	TransactionStore
}
