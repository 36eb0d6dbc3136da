package memory

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

// Store keeps every ledger collection in memory, for dev/demo mode and
// tests. Row order within a collection is preserved; the header-bearing
// line of an order is whichever row carries a date, same as the durable
// store.
type Store struct {
	mu          sync.RWMutex
	products    []domain.Product
	open        []domain.OrderLine
	finalized   []domain.OrderLine
	returned    []domain.OrderLine
	transit     []domain.PurchaseLine
	purchaseLog []domain.PurchaseLine
	feeProfiles []domain.FeeProfile
	operators   map[string]domain.OperatorAccount
}

func New() *Store {
	return &Store{
		feeProfiles: store.DefaultFeeProfiles(),
		operators:   map[string]domain.OperatorAccount{},
	}
}

// seedOperators builds the initial operator accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. Production runs
// use PostgreSQL (DATABASE_URL set) and never touch these.
func seedOperators() map[string]domain.OperatorAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	operators := map[string]domain.OperatorAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		operators[u.username] = domain.OperatorAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return operators
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	restocked := now.Add(-72 * time.Hour)
	products := []domain.Product{
		{Name: "無線滑鼠", SKU: "ACC-MOUSE-01", Category: "accessory", UnitCost: 185.50, OnHand: 42, SafetyStock: 10, FirstListedAt: now.Add(-90 * 24 * time.Hour), LastRestockedAt: &restocked, UpdatedAt: now},
		{Name: "機械鍵盤", SKU: "ACC-KB-01", Category: "accessory", UnitCost: 640.00, OnHand: 8, SafetyStock: 12, FirstListedAt: now.Add(-60 * 24 * time.Hour), LastRestockedAt: &restocked, UpdatedAt: now},
		{Name: "手機支架", SKU: "ACC-STAND-01", Category: "accessory", UnitCost: 45.25, OnHand: -3, SafetyStock: 5, FirstListedAt: now.Add(-30 * 24 * time.Hour), UpdatedAt: now},
		{Name: "充電線 1m", SKU: "CAB-USBC-01", Category: "cable", UnitCost: 28.00, OnHand: 120, SafetyStock: 20, FirstListedAt: now.Add(-120 * 24 * time.Hour), LastRestockedAt: &restocked, UpdatedAt: now},
	}

	return &Store{
		products:    products,
		feeProfiles: store.DefaultFeeProfiles(),
		operators:   seedOperators(),
	}
}

func (s *Store) Products(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products), nil
}

func (s *Store) OrderLines(_ context.Context, collection string) ([]domain.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch collection {
	case store.CollectionOpen:
		return cloneOrderLines(s.open), nil
	case store.CollectionFinalized:
		return cloneOrderLines(s.finalized), nil
	case store.CollectionReturned:
		return cloneOrderLines(s.returned), nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) PurchaseLines(_ context.Context, collection string) ([]domain.PurchaseLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch collection {
	case store.CollectionTransit:
		return clonePurchaseLines(s.transit), nil
	case store.CollectionPurchaseLog:
		return clonePurchaseLines(s.purchaseLog), nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) FeeProfiles(_ context.Context) ([]domain.FeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]domain.FeeProfile, len(s.feeProfiles))
	copy(profiles, s.feeProfiles)
	return profiles, nil
}

func (s *Store) Apply(_ context.Context, mut store.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mut.Products != nil {
		s.products = cloneProducts(*mut.Products)
	}
	if mut.Open != nil {
		s.open = cloneOrderLines(*mut.Open)
	}
	if mut.Finalized != nil {
		s.finalized = cloneOrderLines(*mut.Finalized)
	}
	if mut.Returned != nil {
		s.returned = cloneOrderLines(*mut.Returned)
	}
	if mut.Transit != nil {
		s.transit = clonePurchaseLines(*mut.Transit)
	}
	if mut.PurchaseLog != nil {
		s.purchaseLog = clonePurchaseLines(*mut.PurchaseLog)
	}
	if mut.FeeProfiles != nil {
		profiles := make([]domain.FeeProfile, len(*mut.FeeProfiles))
		copy(profiles, *mut.FeeProfiles)
		s.feeProfiles = profiles
	}
	return nil
}

func (s *Store) ExportState(_ context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &domain.Snapshot{
		ExportedAt:     time.Now().UTC(),
		Products:       cloneProducts(s.products),
		OpenLines:      cloneOrderLines(s.open),
		FinalizedLines: cloneOrderLines(s.finalized),
		ReturnedLines:  cloneOrderLines(s.returned),
		TransitLines:   clonePurchaseLines(s.transit),
		HistoryLines:   clonePurchaseLines(s.purchaseLog),
		FeeProfiles:    append([]domain.FeeProfile(nil), s.feeProfiles...),
	}, nil
}

func (s *Store) ImportState(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = cloneProducts(snap.Products)
	s.open = cloneOrderLines(snap.OpenLines)
	s.finalized = cloneOrderLines(snap.FinalizedLines)
	s.returned = cloneOrderLines(snap.ReturnedLines)
	s.transit = clonePurchaseLines(snap.TransitLines)
	s.purchaseLog = clonePurchaseLines(snap.HistoryLines)
	if len(snap.FeeProfiles) > 0 {
		s.feeProfiles = append([]domain.FeeProfile(nil), snap.FeeProfiles...)
	} else {
		s.feeProfiles = store.DefaultFeeProfiles()
	}
	return nil
}

func (s *Store) Operators(_ context.Context) ([]domain.OperatorAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	operators := make([]domain.OperatorAccount, 0, len(s.operators))
	for _, op := range s.operators {
		operators = append(operators, op)
	}
	return operators, nil
}

func (s *Store) CreateOperator(_ context.Context, account domain.OperatorAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.Username == "" || account.Password == "" {
		return store.ErrInvalidAmount
	}
	if _, exists := s.operators[account.Username]; exists {
		return store.ErrInvalidState
	}
	s.operators[account.Username] = account
	return nil
}

func (s *Store) UpdateOperatorPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operators[username]
	if !ok {
		return store.ErrNotFound
	}
	op.Password = password
	s.operators[username] = op
	return nil
}

func cloneProducts(in []domain.Product) []domain.Product {
	out := make([]domain.Product, len(in))
	for i, p := range in {
		if p.LastRestockedAt != nil {
			ts := *p.LastRestockedAt
			p.LastRestockedAt = &ts
		}
		out[i] = p
	}
	return out
}

func cloneOrderLines(in []domain.OrderLine) []domain.OrderLine {
	out := make([]domain.OrderLine, len(in))
	copy(out, in)
	return out
}

func clonePurchaseLines(in []domain.PurchaseLine) []domain.PurchaseLine {
	out := make([]domain.PurchaseLine, len(in))
	copy(out, in)
	return out
}
