/*Basic command structure*/
package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/fint-dev/fint/pkg/logger"
	"github.com/fint-dev/fint/pkg/store"
)

// context holds global options
type context struct {
	Store   string `default:"jsonfile:fint.json" help:"Where data lives [jsonfile:/path/file.json es8:http://myelasticsearch:9200]"`
	Verbose bool   `help:"Enable debug logging."`
}

// cli commands / args available
var cli struct {
	Ctx context `embed`

	Account accountCmd `cmd help:"Manage accounts."`
	Import  importCmd  `cmd help:"Import a bank CSV export as raw transactions."`
	Link    linkCmd    `cmd help:"Manage open banking links."`
	Sync    syncCmd    `cmd help:"Pull raw transactions from the open banking provider."`
	Build   buildCmd   `cmd help:"Fold raw transactions into canonical transactions."`
	Rehash  rehashCmd  `cmd help:"Recompute an account's dedup hashes after a strategy change."`
	Report  reportCmd  `cmd help:"Balance, spend and income rollups for an account."`
}

func (c *context) logger() zerolog.Logger {
	return logger.New(c.Verbose)
}

func (c *context) store() (store.Store, error) {
	bits := strings.SplitN(c.Store, ":", 2)
	if len(bits) != 2 {
		return nil, fmt.Errorf("invalid store, expected [jsonfile:/path/to/file.json] or [es8:http://elasticsearch:9200]")
	}

	if bits[0] == "es8" {
		return store.NewElasticsearchV8(c.logger(), bits[1])
	}

	return store.NewJSONFile(bits[1])
}

func main() {
	ctx := kong.Parse(&cli)
	err := ctx.Run(&cli.Ctx)
	ctx.FatalIfErrorf(err)
}
