package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fint-dev/fint/pkg/domain"
)

// JSONFile keeps the whole dataset in one JSON file, loaded on open and
// rewritten on every mutation. Fine for a personal dataset; it also backs
// the tests. An empty filename keeps everything in memory.
type JSONFile struct {
	filename string

	mu   sync.Mutex
	data *fileData
}

type fileData struct {
	Accounts     []*domain.Account        `json:"accounts"`
	Raw          []*domain.RawTransaction `json:"raw_transactions"`
	Transactions []*domain.Transaction    `json:"transactions"`
}

func NewJSONFile(filename string) (*JSONFile, error) {
	f := &JSONFile{filename: filename, data: &fileData{}}

	if filename == "" {
		return f, nil
	}

	blob, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	return f, json.Unmarshal(blob, f.data)
}

// save writes the dataset back out. Caller holds the lock.
func (f *JSONFile) save() error {
	if f.filename == "" {
		return nil
	}
	blob, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	return os.WriteFile(f.filename, blob, 0644)
}

func (f *JSONFile) CreateAccount(ctx context.Context, account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.data.Accounts {
		if a.ID == account.ID {
			return fmt.Errorf("account %s already exists", account.ID)
		}
	}

	f.data.Accounts = append(f.data.Accounts, account)
	return f.save()
}

func (f *JSONFile) Accounts(ctx context.Context) ([]*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Account{}, f.data.Accounts...), nil
}

func (f *JSONFile) Account(ctx context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.data.Accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (f *JSONFile) SetHashingStrategy(ctx context.Context, id string, strategy domain.HashingStrategy) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.data.Accounts {
		if a.ID == id {
			a.HashingStrategy = strategy
			return f.save()
		}
	}
	return fmt.Errorf("no such account %s", id)
}

func (f *JSONFile) InsertRaw(ctx context.Context, raws []*domain.RawTransaction) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := map[string]bool{}
	for _, r := range f.data.Raw {
		existing[r.Key.String()] = true
	}

	inserted := 0
	for _, r := range raws {
		if existing[r.Key.String()] {
			continue // expected on re-ingestion
		}
		existing[r.Key.String()] = true
		f.data.Raw = append(f.data.Raw, r)
		inserted++
	}

	return inserted, f.save()
}

func (f *JSONFile) RawByAccount(ctx context.Context, accountID string) ([]*domain.RawTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	found := []*domain.RawTransaction{}
	for _, r := range f.data.Raw {
		if r.Key.AccountID == accountID {
			found = append(found, r)
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Seq < found[j].Seq })
	return found, nil
}

func (f *JSONFile) DeletePending(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.data.Raw[:0]
	for _, r := range f.data.Raw {
		if r.Key.AccountID == accountID && r.Pending {
			continue
		}
		kept = append(kept, r)
	}
	f.data.Raw = kept
	return f.save()
}

func (f *JSONFile) UpdateHash(ctx context.Context, key domain.Key, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.data.Raw {
		if r.Key == key {
			r.Hash = hash
			return f.save()
		}
	}
	return fmt.Errorf("no raw transaction %s", key)
}

func (f *JSONFile) TransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	found := []*domain.Transaction{}
	for _, t := range f.data.Transactions {
		if t.AccountID == accountID {
			found = append(found, t)
		}
	}
	return found, nil
}

func (f *JSONFile) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.data.Transactions {
		if t.ID == tx.ID {
			return fmt.Errorf("transaction %s already exists", tx.ID)
		}
	}

	f.data.Transactions = append(f.data.Transactions, tx)
	return f.save()
}
