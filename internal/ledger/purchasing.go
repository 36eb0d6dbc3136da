package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/redmaple030/shopee-oms/internal/allocation"
	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/inventory"
	"github.com/redmaple030/shopee-oms/internal/store"
	"github.com/redmaple030/shopee-oms/internal/xid"
)

// SubmitPurchase records a purchase as in-transit. Order-level shipping
// and tax are allocated across lines by gross share, so the landed cost
// of each line is fixed at submission time. Rows land in both the transit
// buffer and the permanent history (pending until received).
func (l *Ledger) SubmitPurchase(ctx context.Context, req domain.SubmitPurchaseRequest) (*domain.SubmitPurchaseResponse, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("submit purchase without lines: %w", store.ErrInvalidQuantity)
	}
	if req.ShippingTotal < 0 || req.TaxTotal < 0 {
		return nil, fmt.Errorf("submit purchase charges: %w", store.ErrInvalidAmount)
	}
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return nil, fmt.Errorf("purchase line %q qty %d: %w", line.Product, line.Qty, store.ErrInvalidQuantity)
		}
		if line.UnitPrice < 0 {
			return nil, fmt.Errorf("purchase line %q price %v: %w", line.Product, line.UnitPrice, store.ErrInvalidAmount)
		}
	}

	products, err := l.repo.Products(ctx)
	if err != nil {
		return nil, err
	}
	book := inventory.NewBook(products)
	for _, line := range req.Lines {
		if _, ok := book.Get(line.Product); !ok {
			return nil, fmt.Errorf("purchase line product %q: %w", line.Product, store.ErrNotFound)
		}
	}

	transit, err := l.repo.PurchaseLines(ctx, store.CollectionTransit)
	if err != nil {
		return nil, err
	}
	history, err := l.repo.PurchaseLines(ctx, store.CollectionPurchaseLog)
	if err != nil {
		return nil, err
	}

	lineGross := make([]float64, len(req.Lines))
	var totalGross float64
	for i, line := range req.Lines {
		lineGross[i] = float64(line.Qty) * line.UnitPrice
		totalGross += lineGross[i]
	}
	shares := allocation.Allocate(totalGross, req.ShippingTotal, req.TaxTotal, lineGross)

	now := l.now().UTC()
	purchaseID := xid.New("po")
	lines := make([]domain.PurchaseLine, 0, len(req.Lines))
	for i, item := range req.Lines {
		lines = append(lines, domain.PurchaseLine{
			PurchaseID:        purchaseID,
			Supplier:          req.Supplier,
			Date:              now.Format(dateLayout),
			Product:           item.Product,
			Qty:               item.Qty,
			UnitPrice:         item.UnitPrice,
			AllocatedShipping: allocation.Round2(shares[i].Fee),
			AllocatedTax:      allocation.Round2(shares[i].Tax),
			Note:              "pending",
		})
	}

	var mut store.Mutation
	mut.SetTransit(append(transit, lines...)).SetPurchaseLog(append(history, lines...))
	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	return &domain.SubmitPurchaseResponse{PurchaseID: purchaseID, Lines: lines}, nil
}

// ReceivePurchase books every line of an in-transit purchase into stock,
// recomputing the weighted-average cost per product, stamps the history
// rows, and clears the transit buffer.
func (l *Ledger) ReceivePurchase(ctx context.Context, purchaseID string) error {
	transit, err := l.repo.PurchaseLines(ctx, store.CollectionTransit)
	if err != nil {
		return err
	}
	history, err := l.repo.PurchaseLines(ctx, store.CollectionPurchaseLog)
	if err != nil {
		return err
	}

	var receiving []domain.PurchaseLine
	kept := make([]domain.PurchaseLine, 0, len(transit))
	for _, row := range transit {
		if row.PurchaseID == purchaseID {
			receiving = append(receiving, row)
		} else {
			kept = append(kept, row)
		}
	}
	if len(receiving) == 0 {
		for _, row := range history {
			if row.PurchaseID == purchaseID {
				return fmt.Errorf("purchase %s is not in transit: %w", purchaseID, store.ErrInvalidState)
			}
		}
		return fmt.Errorf("purchase %s: %w", purchaseID, store.ErrNotFound)
	}

	products, err := l.repo.Products(ctx)
	if err != nil {
		return err
	}
	book := inventory.NewBook(products)
	now := l.now().UTC()
	for _, row := range receiving {
		if err := book.Receive(row.Product, row.Qty, row.UnitPrice, row.AllocatedShipping, row.AllocatedTax, now); err != nil {
			return err
		}
	}

	received := now.Format(dateLayout)
	for i := range history {
		if history[i].PurchaseID == purchaseID {
			history[i].ReceivedAt = received
			history[i].Note = "received"
		}
	}

	var mut store.Mutation
	mut.SetProducts(book.Products()).SetTransit(kept).SetPurchaseLog(history)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return err
	}
	l.invalidateReports(ctx)
	log.Printf("[ledger] purchase %s received: %d line(s)", purchaseID, len(receiving))
	return nil
}

// CancelPurchase removes an in-transit purchase from both the transit
// buffer and the history. A purchase already received stays put.
func (l *Ledger) CancelPurchase(ctx context.Context, purchaseID string) error {
	transit, err := l.repo.PurchaseLines(ctx, store.CollectionTransit)
	if err != nil {
		return err
	}
	history, err := l.repo.PurchaseLines(ctx, store.CollectionPurchaseLog)
	if err != nil {
		return err
	}

	keptTransit := make([]domain.PurchaseLine, 0, len(transit))
	found := false
	for _, row := range transit {
		if row.PurchaseID == purchaseID {
			found = true
		} else {
			keptTransit = append(keptTransit, row)
		}
	}
	if !found {
		for _, row := range history {
			if row.PurchaseID == purchaseID {
				return fmt.Errorf("purchase %s already received: %w", purchaseID, store.ErrInvalidState)
			}
		}
		return fmt.Errorf("purchase %s: %w", purchaseID, store.ErrNotFound)
	}

	keptHistory := make([]domain.PurchaseLine, 0, len(history))
	for _, row := range history {
		if row.PurchaseID != purchaseID {
			keptHistory = append(keptHistory, row)
		}
	}

	var mut store.Mutation
	mut.SetTransit(keptTransit).SetPurchaseLog(keptHistory)
	return l.repo.Apply(ctx, mut)
}

// ListPurchases reads the transit buffer or the received slice of the
// permanent history. History rows are written at submission with an
// empty ReceivedAt, so pending rows are filtered out of the received
// listing.
func (l *Ledger) ListPurchases(ctx context.Context, state string) ([]domain.PurchaseLine, error) {
	switch state {
	case domain.PurchaseStateInTransit:
		return l.repo.PurchaseLines(ctx, store.CollectionTransit)
	case domain.PurchaseStateReceived:
		history, err := l.repo.PurchaseLines(ctx, store.CollectionPurchaseLog)
		if err != nil {
			return nil, err
		}
		received := make([]domain.PurchaseLine, 0, len(history))
		for _, row := range history {
			if row.ReceivedAt != "" {
				received = append(received, row)
			}
		}
		return received, nil
	}
	return nil, fmt.Errorf("purchase state %q: %w", state, store.ErrNotFound)
}

func (l *Ledger) ListFeeProfiles(ctx context.Context) ([]domain.FeeProfile, error) {
	return l.repo.FeeProfiles(ctx)
}

// AddFeeProfile registers a named fee profile. The manual profile name is
// reserved for caller-supplied rates and cannot be persisted.
func (l *Ledger) AddFeeProfile(ctx context.Context, profile domain.FeeProfile) error {
	name := strings.TrimSpace(profile.Name)
	if name == "" || name == domain.FeeProfileManual {
		return fmt.Errorf("fee profile name %q: %w", profile.Name, store.ErrInvalidAmount)
	}
	if profile.RatePercent < 0 || profile.FixedFee < 0 {
		return fmt.Errorf("fee profile %q rates: %w", name, store.ErrInvalidAmount)
	}

	profiles, err := l.repo.FeeProfiles(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p.Name == name {
			return fmt.Errorf("fee profile %q already exists: %w", name, store.ErrInvalidState)
		}
	}
	profile.Name = name
	profiles = append(profiles, profile)

	var mut store.Mutation
	mut.SetFeeProfiles(profiles)
	return l.repo.Apply(ctx, mut)
}

// DeleteFeeProfile removes a custom fee profile. The seeded defaults are
// not deletable.
func (l *Ledger) DeleteFeeProfile(ctx context.Context, name string) error {
	if name == domain.FeeProfileStandard || name == domain.FeeProfileCampaign {
		return fmt.Errorf("fee profile %q is built in: %w", name, store.ErrInvalidState)
	}

	profiles, err := l.repo.FeeProfiles(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, p := range profiles {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("fee profile %q: %w", name, store.ErrNotFound)
	}
	profiles = append(profiles[:idx], profiles[idx+1:]...)

	var mut store.Mutation
	mut.SetFeeProfiles(profiles)
	return l.repo.Apply(ctx, mut)
}
