package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fint-dev/fint/pkg/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog"
)

// from https://github.com/elastic/go-elasticsearch/blob/master/_examples/bulk/indexer.go

const (
	esIndexAccounts     = "fint-accounts"
	esIndexRaw          = "fint-raw-transactions"
	esIndexTransactions = "fint-transactions"

	esFlush    = 2048
	esPageSize = 10000

	envEsAddr = "ELASTICSEARCH_SERVICE_HOST"
	envEsPort = "ELASTICSEARCH_SERVICE_PORT"
)

// ElasticsearchV8 implements Store on an Elasticsearch cluster. Documents
// keep their natural ids (raw records use the composite key string) so
// bulk "create" actions reject duplicates per item, which is exactly the
// insert-many-ignoring-duplicates the ingestion pipeline wants.
type ElasticsearchV8 struct {
	client *elasticsearch.Client
	log    zerolog.Logger
}

// NewElasticsearchV8 connects to the given urls, falling back to the
// usual service env vars, then localhost.
func NewElasticsearchV8(log zerolog.Logger, urls ...string) (*ElasticsearchV8, error) {
	if len(urls) == 0 {
		address := os.Getenv(envEsAddr)
		port := os.Getenv(envEsPort)
		if port == "" {
			port = "9200" // default port
		}
		if address == "" {
			address = "localhost" // default address
		}
		urls = []string{fmt.Sprintf("http://%s:%s", address, port)}
	}

	retryBackoff := backoff.NewExponentialBackOff()

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: urls,

		// Retry on 429 TooManyRequests statuses
		RetryOnStatus: []int{502, 503, 504, 429},

		// Configure the backoff function
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},

		// Retry up to 5 attempts
		MaxRetries: 5,
	})
	if err != nil {
		return nil, err
	}

	e := &ElasticsearchV8{client: client, log: log}
	for _, index := range []string{esIndexAccounts, esIndexRaw, esIndexTransactions} {
		_, err = client.Indices.Create(index)
		if err != nil {
			log.Debug().Err(err).Str("index", index).Msg("attempted to make index")
		}
	}

	return e, nil
}

type esHits struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// search runs a query against one index and returns the raw _source blobs.
func (e *ElasticsearchV8) search(ctx context.Context, index string, query map[string]interface{}, sort ...string) ([]json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(esPageSize),
		e.client.Search.WithSort(sort...),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, res.String())
	}

	hits := &esHits{}
	err = json.NewDecoder(res.Body).Decode(hits)
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(hits.Hits.Hits))
	for _, h := range hits.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func termQuery(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				field: value,
			},
		},
	}
}

func (e *ElasticsearchV8) CreateAccount(ctx context.Context, account *domain.Account) error {
	blob, err := json.Marshal(account)
	if err != nil {
		return err
	}

	res, err := e.client.Create(esIndexAccounts, account.ID, bytes.NewReader(blob), e.client.Create.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	if res.IsError() {
		return fmt.Errorf("create account: %s", res.String())
	}
	return nil
}

func (e *ElasticsearchV8) Accounts(ctx context.Context) ([]*domain.Account, error) {
	blobs, err := e.search(ctx, esIndexAccounts, map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}, "id.keyword:asc")
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(blobs))
	for _, blob := range blobs {
		a := &domain.Account{}
		if err := json.Unmarshal(blob, a); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (e *ElasticsearchV8) Account(ctx context.Context, id string) (*domain.Account, error) {
	res, err := e.client.Get(esIndexAccounts, id, e.client.Get.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get account %s: %s", id, res.String())
	}

	doc := &struct {
		Source *domain.Account `json:"_source"`
	}{}
	return doc.Source, json.NewDecoder(res.Body).Decode(doc)
}

func (e *ElasticsearchV8) SetHashingStrategy(ctx context.Context, id string, strategy domain.HashingStrategy) error {
	body, err := json.Marshal(map[string]interface{}{
		"doc": map[string]interface{}{"hashingStrategy": strategy},
	})
	if err != nil {
		return err
	}

	res, err := e.client.Update(esIndexAccounts, id, bytes.NewReader(body), e.client.Update.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("update account %s: %s", id, res.String())
	}
	return nil
}

func (e *ElasticsearchV8) InsertRaw(ctx context.Context, raws []*domain.RawTransaction) (int, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         esIndexRaw,
		FlushBytes:    esFlush,
		Client:        e.client,
		NumWorkers:    1,
		FlushInterval: 10 * time.Second,
	})
	if err != nil {
		return 0, err
	}

	var inserted, failed int64

	for _, r := range raws {
		data, err := json.Marshal(r)
		if err != nil {
			return int(atomic.LoadInt64(&inserted)), err
		}

		err = bi.Add(
			ctx,
			esutil.BulkIndexerItem{
				// "create" (not "index") so an existing composite key is
				// rejected with a 409 instead of overwritten.
				Action: "create",

				DocumentID: r.Key.String(),
				Body:       bytes.NewReader(data),

				OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
					atomic.AddInt64(&inserted, 1)
				},

				OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
					if res.Status == http.StatusConflict {
						return // duplicate key; expected on re-ingestion
					}
					atomic.AddInt64(&failed, 1)
					if err != nil {
						e.log.Error().Err(err).Str("id", item.DocumentID).Msg("failed to index raw transaction")
					} else {
						e.log.Error().Str("id", item.DocumentID).Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("failed to index raw transaction")
					}
				},
			},
		)
		if err != nil {
			return int(atomic.LoadInt64(&inserted)), err
		}
	}

	err = bi.Close(ctx)
	if err != nil {
		return int(atomic.LoadInt64(&inserted)), err
	}

	if n := atomic.LoadInt64(&failed); n > 0 {
		return int(atomic.LoadInt64(&inserted)), fmt.Errorf("failed indexing %d raw transactions", n)
	}
	return int(atomic.LoadInt64(&inserted)), nil
}

func (e *ElasticsearchV8) RawByAccount(ctx context.Context, accountID string) ([]*domain.RawTransaction, error) {
	blobs, err := e.search(ctx, esIndexRaw, termQuery("key.accountId.keyword", accountID), "seq:asc")
	if err != nil {
		return nil, err
	}

	raws := make([]*domain.RawTransaction, 0, len(blobs))
	for _, blob := range blobs {
		r := &domain.RawTransaction{}
		if err := json.Unmarshal(blob, r); err != nil {
			return nil, err
		}
		raws = append(raws, r)
	}
	return raws, nil
}

func (e *ElasticsearchV8) DeletePending(ctx context.Context, accountID string) error {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"key.accountId.keyword": accountID}},
					map[string]interface{}{"term": map[string]interface{}{"pending": true}},
				},
			},
		},
	})
	if err != nil {
		return err
	}

	res, err := e.client.DeleteByQuery(
		[]string{esIndexRaw},
		bytes.NewReader(body),
		e.client.DeleteByQuery.WithContext(ctx),
		e.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("delete pending for %s: %s", accountID, res.String())
	}
	return nil
}

func (e *ElasticsearchV8) UpdateHash(ctx context.Context, key domain.Key, hash string) error {
	body, err := json.Marshal(map[string]interface{}{
		"doc": map[string]interface{}{"hash": hash},
	})
	if err != nil {
		return err
	}

	res, err := e.client.Update(esIndexRaw, key.String(), bytes.NewReader(body), e.client.Update.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("update hash for %s: %s", key, res.String())
	}
	return nil
}

func (e *ElasticsearchV8) TransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	blobs, err := e.search(ctx, esIndexTransactions, termQuery("accountId.keyword", accountID), "date:asc")
	if err != nil {
		return nil, err
	}

	txns := make([]*domain.Transaction, 0, len(blobs))
	for _, blob := range blobs {
		t := &domain.Transaction{}
		if err := json.Unmarshal(blob, t); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}

func (e *ElasticsearchV8) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	blob, err := tx.JSON()
	if err != nil {
		return err
	}

	res, err := e.client.Create(esIndexTransactions, tx.ID, bytes.NewReader(blob), e.client.Create.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("insert transaction %s: %s", tx.ID, res.String())
	}
	return nil
}

// Flush asks ES to make recent writes visible; used between the ingest
// and build phases when both run in one process.
func (e *ElasticsearchV8) Flush(ctx context.Context) error {
	res, err := e.client.Indices.Refresh(
		e.client.Indices.Refresh.WithContext(ctx),
		e.client.Indices.Refresh.WithIndex(esIndexRaw, esIndexTransactions),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(res.String(), "index_not_found") {
		return fmt.Errorf("refresh: %s", res.String())
	}
	return nil
}
