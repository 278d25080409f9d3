/*Commands that work against the local store*/
package main

import (
	gocontext "context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fint-dev/fint/pkg/domain"
	"github.com/fint-dev/fint/pkg/importer"
	"github.com/fint-dev/fint/pkg/ingest"
	"github.com/fint-dev/fint/pkg/merge"
	"github.com/fint-dev/fint/pkg/report"
	"github.com/fint-dev/fint/pkg/rules"
	"github.com/fint-dev/fint/pkg/store"
)

// candidateAccounts resolves explicit account ids, or returns every
// account when none are given.
func candidateAccounts(ctx gocontext.Context, storage store.Store, ids []string) ([]*domain.Account, error) {
	if len(ids) == 0 {
		return storage.Accounts(ctx)
	}

	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		account, err := storage.Account(ctx, id)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("no such account %s", id)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

type accountCmd struct {
	Create      accountCreateCmd      `cmd help:"Create an account."`
	List        accountListCmd        `cmd help:"List accounts."`
	SetStrategy accountSetStrategyCmd `cmd name:"set-strategy" help:"Change an account's hashing strategy (run rehash after)."`
}

type accountCreateCmd struct {
	Name         string `required help:"Display name."`
	Currency     string `required help:"ISO currency code, eg. GBP. One controlled account per currency."`
	Strategy     string `required help:"Hashing strategy [txid paypal natwest revolut]."`
	Uncontrolled bool   `help:"Mark the account as uncontrolled."`
}

func (c *accountCreateCmd) Run(ctx *context) error {
	strategy := domain.HashingStrategy(c.Strategy)
	if !strategy.Valid() {
		return fmt.Errorf("unknown hashing strategy %q", c.Strategy)
	}

	storage, err := ctx.store()
	if err != nil {
		return err
	}

	account := &domain.Account{
		ID:              uuid.NewString(),
		Name:            c.Name,
		Currency:        c.Currency,
		HashingStrategy: strategy,
		Uncontrolled:    c.Uncontrolled,
	}
	err = storage.CreateAccount(gocontext.Background(), account)
	if err != nil {
		return err
	}

	fmt.Println("created account", account.ID)
	return nil
}

type accountListCmd struct{}

func (c *accountListCmd) Run(ctx *context) error {
	storage, err := ctx.store()
	if err != nil {
		return err
	}

	accounts, err := storage.Accounts(gocontext.Background())
	if err != nil {
		return err
	}

	for _, a := range accounts {
		flags := ""
		if a.Uncontrolled {
			flags = " (uncontrolled)"
		}
		fmt.Printf("%s  %s  %s  %s%s\n", a.ID, a.Currency, a.HashingStrategy, a.Name, flags)
	}
	return nil
}

type accountSetStrategyCmd struct {
	ID       string `arg help:"Account id."`
	Strategy string `arg help:"New hashing strategy [txid paypal natwest revolut]."`
}

func (c *accountSetStrategyCmd) Run(ctx *context) error {
	strategy := domain.HashingStrategy(c.Strategy)
	if !strategy.Valid() {
		return fmt.Errorf("unknown hashing strategy %q", c.Strategy)
	}

	storage, err := ctx.store()
	if err != nil {
		return err
	}

	err = storage.SetHashingStrategy(gocontext.Background(), c.ID, strategy)
	if err != nil {
		return err
	}

	fmt.Println("strategy updated; existing hashes are stale until you run: fint rehash", c.ID)
	return nil
}

type importCmd struct {
	Format  string   `required help:"CSV format [natwest revolut paypal]."`
	File    string   `arg type:"existingfile" help:"CSV export to import."`
	Account []string `help:"Candidate account ids (default: all accounts)."`
}

func (c *importCmd) Run(ctx *context) error {
	parser := importer.DefaultRegistry().Get(c.Format)
	if parser == nil {
		return fmt.Errorf("no importer for format %q", c.Format)
	}

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	batch, err := parser.Parse(f)
	if err != nil {
		return err
	}

	storage, err := ctx.store()
	if err != nil {
		return err
	}
	bg := gocontext.Background()

	accounts, err := candidateAccounts(bg, storage, c.Account)
	if err != nil {
		return err
	}

	rep, err := ingest.NewPipeline(storage, ctx.logger()).Ingest(bg, batch, accounts)
	if err != nil {
		return err
	}

	fmt.Printf("imported %s: %s\n", c.File, rep)
	return nil
}

type buildCmd struct {
	Account string `help:"Account id (default: all accounts)."`
	Rules   string `default:"rules.json" help:"Category rules file."`
}

func (c *buildCmd) Run(ctx *context) error {
	ruleset, err := rules.Load(c.Rules)
	if errors.Is(err, os.ErrNotExist) {
		logger := ctx.logger()
		logger.Warn().Str("path", c.Rules).Msg("no rules file, everything will be uncategorised")
		ruleset = nil
	} else if err != nil {
		return err
	}

	storage, err := ctx.store()
	if err != nil {
		return err
	}
	bg := gocontext.Background()

	// Backends with delayed read visibility need a flush so records
	// ingested moments ago make it into this build.
	if flusher, ok := storage.(interface{ Flush(gocontext.Context) error }); ok {
		err = flusher.Flush(bg)
		if err != nil {
			return err
		}
	}

	accounts, err := candidateAccounts(bg, storage, nil)
	if err != nil {
		return err
	}

	builder := merge.NewBuilder(storage, ruleset, ctx.logger())
	for _, account := range accounts {
		if c.Account != "" && account.ID != c.Account {
			continue
		}
		made, err := builder.Build(bg, account.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: built %d transactions\n", account.ID, made)
	}
	return nil
}

type rehashCmd struct {
	Account string `arg help:"Account id."`
}

func (c *rehashCmd) Run(ctx *context) error {
	storage, err := ctx.store()
	if err != nil {
		return err
	}

	changed, err := ingest.NewPipeline(storage, ctx.logger()).RehashAccount(gocontext.Background(), c.Account)
	if err != nil {
		return err
	}

	fmt.Printf("rehashed %s: %d records changed\n", c.Account, changed)
	return nil
}

type reportCmd struct {
	Account string `arg help:"Account id."`
	Days    int    `default:"30" help:"Days of balance history."`
}

func (c *reportCmd) Run(ctx *context) error {
	storage, err := ctx.store()
	if err != nil {
		return err
	}

	txns, err := storage.TransactionsByAccount(gocontext.Background(), c.Account)
	if err != nil {
		return err
	}

	now := time.Now()
	fmt.Println("balance:", report.Balance(txns))

	fmt.Println("\nbalance history:")
	for _, p := range report.BalanceSeries(txns, now, c.Days) {
		fmt.Printf("  %s  %s\n", p.Name, p.Balance)
	}

	spend := report.SpendSeries(txns, now, 10, 3)
	income := report.IncomeSeries(txns, now, 10, 3)
	fmt.Println("\nspend / income (3 day buckets):")
	for i := range spend {
		fmt.Printf("  %s  -%s / +%s\n", spend[i].Name, spend[i].Balance, income[i].Balance)
	}
	return nil
}
