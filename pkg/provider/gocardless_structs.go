package provider

import (
	"encoding/json"
	"fmt"

	"github.com/fint-dev/fint/pkg/domain"
)

// Institution is a bank available through the provider.
type Institution struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	BIC                  string   `json:"bic"`
	TransactionTotalDays string   `json:"transaction_total_days"`
	Countries            []string `json:"countries"`
	Logo                 string   `json:"logo"`
}

// RequisitionRequest is a freshly created bank link; Link is where the
// user completes consent.
type RequisitionRequest struct {
	ID        string `json:"id"`
	Link      string `json:"link"`
	Reference string `json:"reference"`
}

// Requisition is an established (or in-progress) bank link and the
// provider account ids it grants access to.
type Requisition struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Accounts      []string `json:"accounts"`
	Reference     string   `json:"reference"`
	InstitutionID string   `json:"institution_id"`
}

// BankAccount is the subset of provider account details we show when
// listing linked accounts.
type BankAccount struct {
	ResourceID string `json:"resourceId,omitempty"`
	IBAN       string `json:"iban,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Name       string `json:"name,omitempty"`
	OwnerName  string `json:"ownerName,omitempty"`
	Product    string `json:"product,omitempty"`
	Status     string `json:"status,omitempty"`
}

type tokenReply struct {
	Access         string `json:"access"`
	AccessExpires  int    `json:"access_expires"`
	Refresh        string `json:"refresh"`
	RefreshExpires int    `json:"refresh_expires"`
}

type agreementReply struct {
	ID string `json:"id"`
}

type requisitionsReply struct {
	Results []*Requisition `json:"results"`
}

type institutionsReply []*Institution

type accountDetailsReply struct {
	Account *BankAccount `json:"account"`
	Summary string       `json:"summary"`
}

type transactionsReply struct {
	Transactions struct {
		Booked  []*domain.OpenBankingData `json:"booked"`
		Pending []*domain.OpenBankingData `json:"pending"`
	} `json:"transactions"`
}

// apiError is how the API reports failures inside a 2xx-shaped JSON body
// as well as on error statuses.
type apiError struct {
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider error %d: %s: %s", e.StatusCode, e.Summary, e.Detail)
}

// ensureSuccess checks a reply body for an embedded API error before the
// caller parses it as the expected shape.
func ensureSuccess(data []byte) error {
	reply := &apiError{}
	if err := json.Unmarshal(data, reply); err != nil {
		return nil // not an object; leave it to the real parse
	}
	if reply.StatusCode != 0 {
		return reply
	}
	return nil
}

func parseFeed(data []byte) (*Feed, error) {
	if err := ensureSuccess(data); err != nil {
		return nil, err
	}
	reply := &transactionsReply{}
	err := json.Unmarshal(data, reply)
	if err != nil {
		return nil, err
	}
	return &Feed{
		Booked:  reply.Transactions.Booked,
		Pending: reply.Transactions.Pending,
	}, nil
}

func parseToken(data []byte) (*domain.Token, error) {
	if err := ensureSuccess(data); err != nil {
		return nil, err
	}
	reply := &tokenReply{}
	err := json.Unmarshal(data, reply)
	if err != nil {
		return nil, err
	}
	return domain.NewToken(reply.Access, reply.Refresh, reply.AccessExpires, reply.RefreshExpires), nil
}
