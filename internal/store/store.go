package store

import (
	"context"
	"errors"

	"github.com/redmaple030/shopee-oms/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid order state")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrStoreLocked     = errors.New("ledger store locked")
	ErrSchemaMismatch  = errors.New("ledger schema mismatch")
)

const (
	CollectionProducts    = "products"
	CollectionOpen        = "orders-open"
	CollectionFinalized   = "orders-finalized"
	CollectionReturned    = "orders-returned"
	CollectionTransit     = "purchases-transit"
	CollectionPurchaseLog = "purchases-history"
	CollectionFeeProfiles = "fee-profiles"
)

// Mutation names the collections a single atomic write replaces in full.
// Collections left nil are untouched by Apply.
type Mutation struct {
	Products    *[]domain.Product
	Open        *[]domain.OrderLine
	Finalized   *[]domain.OrderLine
	Returned    *[]domain.OrderLine
	Transit     *[]domain.PurchaseLine
	PurchaseLog *[]domain.PurchaseLine
	FeeProfiles *[]domain.FeeProfile
}

func (m *Mutation) SetProducts(v []domain.Product) *Mutation     { m.Products = &v; return m }
func (m *Mutation) SetOpen(v []domain.OrderLine) *Mutation       { m.Open = &v; return m }
func (m *Mutation) SetFinalized(v []domain.OrderLine) *Mutation  { m.Finalized = &v; return m }
func (m *Mutation) SetReturned(v []domain.OrderLine) *Mutation   { m.Returned = &v; return m }
func (m *Mutation) SetTransit(v []domain.PurchaseLine) *Mutation { m.Transit = &v; return m }
func (m *Mutation) SetPurchaseLog(v []domain.PurchaseLine) *Mutation {
	m.PurchaseLog = &v
	return m
}
func (m *Mutation) SetFeeProfiles(v []domain.FeeProfile) *Mutation { m.FeeProfiles = &v; return m }

func (m Mutation) Empty() bool {
	return m.Products == nil && m.Open == nil && m.Finalized == nil && m.Returned == nil &&
		m.Transit == nil && m.PurchaseLog == nil && m.FeeProfiles == nil
}

// Repository is the durable ledger store. Reads return defensive copies;
// Apply replaces every collection named by the mutation atomically and
// leaves the rest untouched.
type Repository interface {
	Products(ctx context.Context) ([]domain.Product, error)
	OrderLines(ctx context.Context, collection string) ([]domain.OrderLine, error)
	PurchaseLines(ctx context.Context, collection string) ([]domain.PurchaseLine, error)
	FeeProfiles(ctx context.Context) ([]domain.FeeProfile, error)
	Apply(ctx context.Context, mut Mutation) error
	ExportState(ctx context.Context) (*domain.Snapshot, error)
	ImportState(ctx context.Context, snap domain.Snapshot) error
	Operators(ctx context.Context) ([]domain.OperatorAccount, error)
	CreateOperator(ctx context.Context, account domain.OperatorAccount) error
	UpdateOperatorPassword(ctx context.Context, username string, password string) error
}

// DefaultFeeProfiles seeds a fresh store. The manual profile is resolved
// at allocation time from a caller-supplied rate and is never persisted.
func DefaultFeeProfiles() []domain.FeeProfile {
	return []domain.FeeProfile{
		{Name: domain.FeeProfileStandard, RatePercent: 14.5, FixedFee: 0},
		{Name: domain.FeeProfileCampaign, RatePercent: 8.0, FixedFee: 60},
	}
}
