package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fint-dev/fint/pkg/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// https://developer.gocardless.com/bank-account-data/overview

const (
	retries = 5

	apiHost = "bankaccountdata.gocardless.com"

	defaultHistoricalDays = 60
)

// check it meets the interface
var _ Provider = &GoCardless{}

// GoCardless talks to the GoCardless bank-account-data API. Access tokens
// are fetched with the secret id/key pair and cached (encrypted) between
// runs; refresh is attempted before requesting a new token.
type GoCardless struct {
	secretID  string
	secretKey string

	cache *TokenCache
	token *domain.Token

	base string // overridable in tests
	log  zerolog.Logger
}

func NewGoCardless(secretID, secretKey string, cache *TokenCache, log zerolog.Logger) *GoCardless {
	return &GoCardless{
		secretID:  secretID,
		secretKey: secretKey,
		cache:     cache,
		base:      fmt.Sprintf("https://%s", apiHost),
		log:       log,
	}
}

// accessToken returns a valid access token, going cache -> refresh -> new.
func (g *GoCardless) accessToken(ctx context.Context) (string, error) {
	if g.token == nil && g.cache != nil {
		tkn, err := g.cache.Load()
		if err != nil {
			g.log.Debug().Err(err).Msg("no usable cached token")
		} else {
			g.token = tkn
		}
	}

	if g.token != nil && !g.token.HasExpired() {
		return g.token.Value, nil
	}

	if g.token != nil && g.token.CanRefresh() {
		g.log.Debug().Msg("refreshing access token")
		tkn, err := g.refreshToken(ctx, g.token)
		if err == nil {
			g.token = tkn
			g.saveToken()
			return g.token.Value, nil
		}
		g.log.Debug().Err(err).Msg("token refresh failed, requesting new token")
	}

	g.log.Debug().Msg("fetching new access token")
	data, err := g.doPost(ctx, "/api/v2/token/new/", "", map[string]string{
		"secret_id":  g.secretID,
		"secret_key": g.secretKey,
	})
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}

	tkn, err := parseToken(data)
	if err != nil {
		return "", err
	}
	g.token = tkn
	g.saveToken()
	return g.token.Value, nil
}

func (g *GoCardless) refreshToken(ctx context.Context, old *domain.Token) (*domain.Token, error) {
	data, err := g.doPost(ctx, "/api/v2/token/refresh/", "", map[string]string{
		"refresh": old.Refresh,
	})
	if err != nil {
		return nil, err
	}

	tkn, err := parseToken(data)
	if err != nil {
		return nil, err
	}

	// Refresh replies carry no refresh token; keep the old one.
	tkn.Refresh = old.Refresh
	tkn.RefreshExpires = old.RefreshExpires
	return tkn, nil
}

func (g *GoCardless) saveToken() {
	if g.cache == nil || g.token == nil {
		return
	}
	err := g.cache.Save(g.token)
	if err != nil {
		g.log.Warn().Err(err).Msg("failed to cache token")
	}
}

func (g *GoCardless) Institutions(ctx context.Context, country string) ([]*Institution, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("country", country)

	data, err := g.doGet(ctx, "/api/v2/institutions/?"+params.Encode(), token)
	if err != nil {
		return nil, err
	}
	if err := ensureSuccess(data); err != nil {
		return nil, err
	}

	reply := institutionsReply{}
	return reply, json.Unmarshal(data, &reply)
}

func (g *GoCardless) CreateRequisition(ctx context.Context, institutionID, redirect string, maxHistoricalDays int) (*RequisitionRequest, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"reference":      uuid.NewString(),
		"user_language":  "EN",
		"institution_id": institutionID,
		"redirect":       redirect,
	}

	// The default agreement covers 60 days of history; anything else
	// needs an explicit end-user agreement first.
	if maxHistoricalDays != 0 && maxHistoricalDays != defaultHistoricalDays {
		data, err := g.doPost(ctx, "/api/v2/agreements/enduser/", token, map[string]interface{}{
			"institution_id":      institutionID,
			"max_historical_days": maxHistoricalDays,
		})
		if err != nil {
			return nil, err
		}
		if err := ensureSuccess(data); err != nil {
			return nil, err
		}

		agreement := &agreementReply{}
		err = json.Unmarshal(data, agreement)
		if err != nil {
			return nil, err
		}
		body["agreement"] = agreement.ID
	}

	data, err := g.doPost(ctx, "/api/v2/requisitions/", token, body)
	if err != nil {
		return nil, err
	}
	if err := ensureSuccess(data); err != nil {
		return nil, err
	}

	req := &RequisitionRequest{}
	return req, json.Unmarshal(data, req)
}

func (g *GoCardless) Requisitions(ctx context.Context) ([]*Requisition, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := g.doGet(ctx, "/api/v2/requisitions/", token)
	if err != nil {
		return nil, err
	}
	if err := ensureSuccess(data); err != nil {
		return nil, err
	}

	reply := &requisitionsReply{}
	return reply.Results, json.Unmarshal(data, reply)
}

func (g *GoCardless) Requisition(ctx context.Context, id string) (*Requisition, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := g.doGet(ctx, "/api/v2/requisitions/"+url.PathEscape(id)+"/", token)
	if err != nil {
		return nil, err
	}
	if err := ensureSuccess(data); err != nil {
		return nil, err
	}

	req := &Requisition{}
	return req, json.Unmarshal(data, req)
}

func (g *GoCardless) DeleteRequisition(ctx context.Context, id string) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}

	data, err := g.doRequest(ctx, "DELETE", "/api/v2/requisitions/"+url.PathEscape(id)+"/", token, nil)
	if err != nil {
		return err
	}
	return ensureSuccess(data)
}

func (g *GoCardless) AccountDetails(ctx context.Context, accountID string) (*BankAccount, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := g.doGet(ctx, "/api/v2/accounts/"+url.PathEscape(accountID)+"/details/", token)
	if err != nil {
		return nil, err
	}
	if err := ensureSuccess(data); err != nil {
		return nil, err
	}

	reply := &accountDetailsReply{}
	err = json.Unmarshal(data, reply)
	if err != nil {
		return nil, err
	}
	if reply.Summary == "Account is Processing" {
		return nil, fmt.Errorf("account %s is still processing, retry later", accountID)
	}
	return reply.Account, nil
}

func (g *GoCardless) Transactions(ctx context.Context, accountID string) (*Feed, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := g.doGet(ctx, "/api/v2/accounts/"+url.PathEscape(accountID)+"/transactions/", token)
	if err != nil {
		return nil, err
	}
	return parseFeed(data)
}

func (g *GoCardless) doGet(ctx context.Context, path, token string) ([]byte, error) {
	return g.doRequest(ctx, "GET", path, token, nil)
}

func (g *GoCardless) doPost(ctx context.Context, path, token string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return g.doRequest(ctx, "POST", path, token, bytes.NewBuffer(data))
}

func (g *GoCardless) doRequest(ctx context.Context, method, path, token string, body io.Reader) ([]byte, error) {
	var last error
	client := &http.Client{}

	for i := retries; i > 0; i-- {
		g.log.Debug().Str("method", method).Str("path", path).Msg("provider request")

		req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Add("Accept", "application/json")
		req.Header.Add("Content-Type", "application/json")
		if token != "" {
			req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
		}

		resp, err := client.Do(req)
		if err != nil {
			last = err
			continue
		}

		data := []byte{}
		if resp.Body != nil {
			data, err = io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				last = err
				continue
			}
		}

		status := resp.StatusCode
		if status >= 200 && status < 400 {
			return data, nil
		}
		if status >= 500 {
			// they're having trouble, best to retry
			last = fmt.Errorf("got status code: %d (%s)", status, string(data))
			continue
		}

		// client error; retrying won't help
		if err := ensureSuccess(data); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("got status code: %d (%s)", status, string(data))
	}

	return nil, last
}
