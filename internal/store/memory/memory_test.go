package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

func TestApplyReplacesOnlyNamedCollections(t *testing.T) {
	s := New()
	ctx := context.Background()

	var seed store.Mutation
	seed.SetProducts([]domain.Product{{Name: "Widget", OnHand: 5}}).
		SetOpen([]domain.OrderLine{{OrderID: "so-1", Product: "Widget", Qty: 1}})
	if err := s.Apply(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var mut store.Mutation
	mut.SetOpen(nil)
	if err := s.Apply(ctx, mut); err != nil {
		t.Fatalf("apply: %v", err)
	}

	open, err := s.OrderLines(ctx, store.CollectionOpen)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open lines = %d, want 0", len(open))
	}
	products, err := s.Products(ctx)
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Widget" {
		t.Fatalf("unnamed collection was lost: %+v", products)
	}
}

func TestReadsReturnDefensiveCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	restocked := time.Now().UTC()

	var seed store.Mutation
	seed.SetProducts([]domain.Product{{Name: "Widget", OnHand: 5, LastRestockedAt: &restocked}})
	if err := s.Apply(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, _ := s.Products(ctx)
	first[0].Name = "Tampered"
	*first[0].LastRestockedAt = time.Time{}

	second, _ := s.Products(ctx)
	if second[0].Name != "Widget" {
		t.Fatalf("read slice aliases the store")
	}
	if second[0].LastRestockedAt.IsZero() {
		t.Fatalf("restocked pointer aliases the store")
	}
}

func TestApplyCopiesCallerSlices(t *testing.T) {
	s := New()
	ctx := context.Background()

	lines := []domain.OrderLine{{OrderID: "so-1", Product: "Widget", Qty: 1}}
	var mut store.Mutation
	mut.SetOpen(lines)
	if err := s.Apply(ctx, mut); err != nil {
		t.Fatalf("apply: %v", err)
	}
	lines[0].Qty = 99

	open, _ := s.OrderLines(ctx, store.CollectionOpen)
	if open[0].Qty != 1 {
		t.Fatalf("store aliases the caller slice: qty = %d", open[0].Qty)
	}
}

func TestUnknownCollection(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.OrderLines(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := s.PurchaseLines(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	var seed store.Mutation
	seed.SetProducts([]domain.Product{{Name: "Widget", OnHand: 5}}).
		SetFinalized([]domain.OrderLine{{OrderID: "so-1", Date: "2026-08-01", Product: "Widget", Qty: 2}}).
		SetTransit([]domain.PurchaseLine{{PurchaseID: "po-1", Product: "Widget", Qty: 10}})
	if err := s.Apply(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := s.ExportState(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	fresh := New()
	if err := fresh.ImportState(ctx, *snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	products, _ := fresh.Products(ctx)
	finalized, _ := fresh.OrderLines(ctx, store.CollectionFinalized)
	transit, _ := fresh.PurchaseLines(ctx, store.CollectionTransit)
	if len(products) != 1 || len(finalized) != 1 || len(transit) != 1 {
		t.Fatalf("round trip lost records: %d/%d/%d", len(products), len(finalized), len(transit))
	}
	profiles, _ := fresh.FeeProfiles(ctx)
	if len(profiles) != 2 {
		t.Fatalf("empty snapshot profiles must fall back to defaults, got %d", len(profiles))
	}
}

func TestDefaultFeeProfilesSeeded(t *testing.T) {
	s := New()
	profiles, err := s.FeeProfiles(context.Background())
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("profiles = %d, want 2 defaults", len(profiles))
	}
	if profiles[0].Name != domain.FeeProfileStandard || profiles[0].RatePercent != 14.5 {
		t.Fatalf("unexpected standard profile: %+v", profiles[0])
	}
}

func TestOperatorLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	account := domain.OperatorAccount{Username: "ops", Password: "hash", Role: "admin", Active: true, CreatedAt: time.Now().UTC()}
	if err := s.CreateOperator(ctx, account); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateOperator(ctx, account); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("duplicate: got %v, want ErrInvalidState", err)
	}
	if err := s.UpdateOperatorPassword(ctx, "ops", "hash2"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := s.UpdateOperatorPassword(ctx, "ghost", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing operator: got %v, want ErrNotFound", err)
	}

	operators, _ := s.Operators(ctx)
	if len(operators) != 1 || operators[0].Password != "hash2" {
		t.Fatalf("unexpected operators: %+v", operators)
	}
}
