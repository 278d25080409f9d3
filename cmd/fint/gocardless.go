/*Open banking provider commands*/
package main

import (
	gocontext "context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fint-dev/fint/pkg/ingest"
	"github.com/fint-dev/fint/pkg/provider"
)

// providerOpts is shared config for commands that talk to GoCardless.
type providerOpts struct {
	SecretID  string `name:"secret-id" env:"GOCARDLESS_SECRET_ID" required help:"GoCardless secret id."`
	SecretKey string `name:"secret-key" env:"GOCARDLESS_SECRET_KEY" required help:"GoCardless secret key."`

	TokenFile string `name:"token-file" env:"FINT_TOKEN_FILE" default:"token.cache" help:"Encrypted token cache location."`
	CacheKey  string `name:"cache-key" env:"FINT_CACHE_KEY" help:"Encryption key for the token cache (32+ chars)."`
	CacheSig  string `name:"cache-sig" env:"FINT_CACHE_SIG" help:"Signing key for the token cache (32+ chars)."`
}

func (o *providerOpts) provider(log zerolog.Logger) provider.Provider {
	var cache *provider.TokenCache
	if o.CacheKey != "" && o.CacheSig != "" {
		cache = provider.NewTokenCache(o.TokenFile, o.CacheKey, o.CacheSig)
	} else {
		log.Warn().Msg("no cache keys given, provider tokens will not be cached")
	}
	return provider.NewGoCardless(o.SecretID, o.SecretKey, cache, log)
}

type linkCmd struct {
	Institutions linkInstitutionsCmd `cmd help:"List institutions available to link."`
	New          linkNewCmd          `cmd help:"Create a link to an institution."`
	List         linkListCmd         `cmd help:"List existing links."`
	Show         linkShowCmd         `cmd help:"Show a link and its accounts."`
	Rm           linkRmCmd           `cmd help:"Remove a link."`
}

type linkInstitutionsCmd struct {
	providerOpts
	Country string `default:"gb" help:"Country code to list institutions for."`
}

func (c *linkInstitutionsCmd) Run(ctx *context) error {
	institutions, err := c.provider(ctx.logger()).Institutions(gocontext.Background(), c.Country)
	if err != nil {
		return err
	}

	for _, inst := range institutions {
		fmt.Printf("%s  %s (%s days of history)\n", inst.ID, inst.Name, inst.TransactionTotalDays)
	}
	return nil
}

type linkNewCmd struct {
	providerOpts
	Institution       string `arg help:"Institution id (see 'link institutions')."`
	Redirect          string `default:"http://localhost:5274/settings/link/complete" help:"URL the user lands on after consent."`
	MaxHistoricalDays int    `name:"max-historical-days" default:"60" help:"Days of history to request consent for."`
}

func (c *linkNewCmd) Run(ctx *context) error {
	req, err := c.provider(ctx.logger()).CreateRequisition(gocontext.Background(), c.Institution, c.Redirect, c.MaxHistoricalDays)
	if err != nil {
		return err
	}

	fmt.Println("requisition:", req.ID)
	fmt.Println("complete consent at:", req.Link)
	return nil
}

type linkListCmd struct {
	providerOpts
}

func (c *linkListCmd) Run(ctx *context) error {
	requisitions, err := c.provider(ctx.logger()).Requisitions(gocontext.Background())
	if err != nil {
		return err
	}

	for _, req := range requisitions {
		fmt.Printf("%s  %s  %s  %d account(s)\n", req.ID, req.InstitutionID, req.Status, len(req.Accounts))
	}
	return nil
}

type linkShowCmd struct {
	providerOpts
	Requisition string `arg help:"Requisition id."`
}

func (c *linkShowCmd) Run(ctx *context) error {
	prov := c.provider(ctx.logger())
	bg := gocontext.Background()

	req, err := prov.Requisition(bg, c.Requisition)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s  %s\n", req.ID, req.InstitutionID, req.Status)
	for _, accountID := range req.Accounts {
		details, err := prov.AccountDetails(bg, accountID)
		if err != nil {
			fmt.Printf("  %s  (details unavailable: %v)\n", accountID, err)
			continue
		}
		fmt.Printf("  %s  %s  %s  %s\n", accountID, details.Currency, details.Name, details.OwnerName)
	}
	return nil
}

type linkRmCmd struct {
	providerOpts
	Requisition string `arg help:"Requisition id."`
}

func (c *linkRmCmd) Run(ctx *context) error {
	return c.provider(ctx.logger()).DeleteRequisition(gocontext.Background(), c.Requisition)
}

type syncCmd struct {
	providerOpts
	ProviderAccount string   `name:"provider-account" required help:"Provider account id (see 'link show')."`
	Account         []string `required help:"Target account id(s) for the feed."`
}

func (c *syncCmd) Run(ctx *context) error {
	storage, err := ctx.store()
	if err != nil {
		return err
	}

	log := ctx.logger()
	rep, err := ingest.NewPipeline(storage, log).SyncAccount(gocontext.Background(), c.provider(log), c.ProviderAccount, c.Account)
	if err != nil {
		return err
	}

	fmt.Printf("synced %s: %s\n", c.ProviderAccount, rep)
	fmt.Println("run 'fint build' to fold new records into transactions")
	return nil
}
