package provider

import (
	"context"

	"github.com/fint-dev/fint/pkg/domain"
)

// Feed is one provider account's live transaction feed. Pending records
// are provisional: the next sync replaces them wholesale.
type Feed struct {
	Booked  []*domain.OpenBankingData
	Pending []*domain.OpenBankingData
}

// Provider is an open banking data provider.
type Provider interface {
	// Institutions lists banks available in a country ("gb" etc).
	Institutions(ctx context.Context, country string) ([]*Institution, error)

	// CreateRequisition starts a bank link; the user completes consent
	// at the returned Link URL.
	CreateRequisition(ctx context.Context, institutionID, redirect string, maxHistoricalDays int) (*RequisitionRequest, error)

	Requisitions(ctx context.Context) ([]*Requisition, error)
	Requisition(ctx context.Context, id string) (*Requisition, error)
	DeleteRequisition(ctx context.Context, id string) error

	AccountDetails(ctx context.Context, accountID string) (*BankAccount, error)

	Transactions(ctx context.Context, accountID string) (*Feed, error)
}
