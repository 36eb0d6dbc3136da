package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

func TestSubmitPurchaseAllocatesCharges(t *testing.T) {
	l, repo := newTestLedger(t, product("A", 0, 0), product("B", 0, 0))
	ctx := context.Background()

	resp, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		Supplier:      "acme",
		ShippingTotal: 30,
		TaxTotal:      15,
		Lines: []domain.PurchaseCartLine{
			{Product: "A", Qty: 10, UnitPrice: 6}, // gross 60
			{Product: "B", Qty: 10, UnitPrice: 4}, // gross 40
		},
	})
	if err != nil {
		t.Fatalf("submit purchase: %v", err)
	}
	if resp.Lines[0].AllocatedShipping != 18 || resp.Lines[1].AllocatedShipping != 12 {
		t.Fatalf("shipping shares = %v/%v, want 18/12", resp.Lines[0].AllocatedShipping, resp.Lines[1].AllocatedShipping)
	}
	if resp.Lines[0].AllocatedTax != 9 || resp.Lines[1].AllocatedTax != 6 {
		t.Fatalf("tax shares = %v/%v, want 9/6", resp.Lines[0].AllocatedTax, resp.Lines[1].AllocatedTax)
	}

	transit, _ := repo.PurchaseLines(ctx, store.CollectionTransit)
	history, _ := repo.PurchaseLines(ctx, store.CollectionPurchaseLog)
	if len(transit) != 2 || len(history) != 2 {
		t.Fatalf("rows = %d transit / %d history, want 2/2", len(transit), len(history))
	}
	if history[0].ReceivedAt != "" {
		t.Fatalf("history rows must start pending: %+v", history[0])
	}

	products, _ := repo.Products(ctx)
	for _, p := range products {
		if p.OnHand != 0 {
			t.Fatalf("submission must not touch stock, %s = %d", p.Name, p.OnHand)
		}
	}
}

func TestSubmitPurchaseValidation(t *testing.T) {
	l, _ := newTestLedger(t, product("A", 0, 0))
	ctx := context.Background()

	if _, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{}); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("empty: got %v, want ErrInvalidQuantity", err)
	}
	if _, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		ShippingTotal: -1,
		Lines:         []domain.PurchaseCartLine{{Product: "A", Qty: 1, UnitPrice: 1}},
	}); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("negative shipping: got %v, want ErrInvalidAmount", err)
	}
	if _, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		Lines: []domain.PurchaseCartLine{{Product: "Ghost", Qty: 1, UnitPrice: 1}},
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown product: got %v, want ErrNotFound", err)
	}
}

func TestReceivePurchaseUpdatesWAC(t *testing.T) {
	l, repo := newTestLedger(t, product("Widget", 0, 0))
	ctx := context.Background()

	first, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		ShippingTotal: 10,
		Lines:         []domain.PurchaseCartLine{{Product: "Widget", Qty: 10, UnitPrice: 5}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := l.ReceivePurchase(ctx, first.PurchaseID); err != nil {
		t.Fatalf("receive: %v", err)
	}

	products, _ := repo.Products(ctx)
	if products[0].UnitCost != 6.0 || products[0].OnHand != 10 {
		t.Fatalf("after first receipt: cost %v qty %d, want 6.0/10", products[0].UnitCost, products[0].OnHand)
	}

	if _, err := l.SubmitOrder(ctx, domain.SubmitOrderRequest{
		Lines: []domain.CartLine{{Product: "Widget", Qty: 3, UnitPrice: 20}},
	}); err != nil {
		t.Fatalf("submit order: %v", err)
	}

	second, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		Lines: []domain.PurchaseCartLine{{Product: "Widget", Qty: 10, UnitPrice: 4}},
	})
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if err := l.ReceivePurchase(ctx, second.PurchaseID); err != nil {
		t.Fatalf("receive second: %v", err)
	}

	products, _ = repo.Products(ctx)
	if products[0].UnitCost != 4.82 {
		t.Fatalf("cost = %v, want 4.82", products[0].UnitCost)
	}
	if products[0].OnHand != 17 {
		t.Fatalf("on hand = %d, want 17", products[0].OnHand)
	}

	transit, _ := repo.PurchaseLines(ctx, store.CollectionTransit)
	if len(transit) != 0 {
		t.Fatalf("transit buffer not cleared: %d rows", len(transit))
	}
	history, _ := repo.PurchaseLines(ctx, store.CollectionPurchaseLog)
	for _, row := range history {
		if row.ReceivedAt == "" || row.Note != "received" {
			t.Fatalf("history row not stamped: %+v", row)
		}
	}
}

func TestReceivePurchaseStateErrors(t *testing.T) {
	l, _ := newTestLedger(t, product("Widget", 0, 0))
	ctx := context.Background()

	resp, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		Lines: []domain.PurchaseCartLine{{Product: "Widget", Qty: 1, UnitPrice: 5}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := l.ReceivePurchase(ctx, resp.PurchaseID); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := l.ReceivePurchase(ctx, resp.PurchaseID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("receive twice: got %v, want ErrInvalidState", err)
	}
	if err := l.ReceivePurchase(ctx, "po-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("receive missing: got %v, want ErrNotFound", err)
	}
}

func TestCancelPurchase(t *testing.T) {
	l, repo := newTestLedger(t, product("Widget", 0, 0))
	ctx := context.Background()

	resp, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		Lines: []domain.PurchaseCartLine{{Product: "Widget", Qty: 5, UnitPrice: 5}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := l.CancelPurchase(ctx, resp.PurchaseID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	transit, _ := repo.PurchaseLines(ctx, store.CollectionTransit)
	history, _ := repo.PurchaseLines(ctx, store.CollectionPurchaseLog)
	if len(transit) != 0 || len(history) != 0 {
		t.Fatalf("cancel must purge both collections: %d/%d", len(transit), len(history))
	}
	products, _ := repo.Products(ctx)
	if products[0].OnHand != 0 || products[0].UnitCost != 0 {
		t.Fatalf("cancel must not touch inventory: %+v", products[0])
	}

	if err := l.CancelPurchase(ctx, resp.PurchaseID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cancel missing: got %v, want ErrNotFound", err)
	}
}

func TestCancelReceivedPurchase(t *testing.T) {
	l, _ := newTestLedger(t, product("Widget", 0, 0))
	ctx := context.Background()

	resp, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		Lines: []domain.PurchaseCartLine{{Product: "Widget", Qty: 5, UnitPrice: 5}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := l.ReceivePurchase(ctx, resp.PurchaseID); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := l.CancelPurchase(ctx, resp.PurchaseID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("cancel received: got %v, want ErrInvalidState", err)
	}
}

func TestFeeProfileManagement(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if err := l.AddFeeProfile(ctx, domain.FeeProfile{Name: "campaign-q4", RatePercent: 12, FixedFee: 20}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.AddFeeProfile(ctx, domain.FeeProfile{Name: "campaign-q4", RatePercent: 12}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("duplicate: got %v, want ErrInvalidState", err)
	}
	if err := l.AddFeeProfile(ctx, domain.FeeProfile{Name: domain.FeeProfileManual, RatePercent: 1}); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("reserved name: got %v, want ErrInvalidAmount", err)
	}
	if err := l.AddFeeProfile(ctx, domain.FeeProfile{Name: "bad", RatePercent: -1}); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("negative rate: got %v, want ErrInvalidAmount", err)
	}

	profiles, err := l.ListFeeProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("profiles = %d, want 3", len(profiles))
	}

	if err := l.DeleteFeeProfile(ctx, "campaign-q4"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.DeleteFeeProfile(ctx, domain.FeeProfileStandard); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("delete builtin: got %v, want ErrInvalidState", err)
	}
	if err := l.DeleteFeeProfile(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete missing: got %v, want ErrNotFound", err)
	}
}

func TestListPurchases(t *testing.T) {
	l, _ := newTestLedger(t, product("Widget", 0, 0))
	ctx := context.Background()

	resp, err := l.SubmitPurchase(ctx, domain.SubmitPurchaseRequest{
		Lines: []domain.PurchaseCartLine{{Product: "Widget", Qty: 5, UnitPrice: 5}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	transit, err := l.ListPurchases(ctx, domain.PurchaseStateInTransit)
	if err != nil {
		t.Fatalf("list transit: %v", err)
	}
	if len(transit) != 1 {
		t.Fatalf("transit = %d, want 1", len(transit))
	}

	received, err := l.ListPurchases(ctx, domain.PurchaseStateReceived)
	if err != nil {
		t.Fatalf("list received: %v", err)
	}
	if len(received) != 0 {
		t.Fatalf("pending rows must not list as received, got %d", len(received))
	}

	if err := l.ReceivePurchase(ctx, resp.PurchaseID); err != nil {
		t.Fatalf("receive: %v", err)
	}
	received, err = l.ListPurchases(ctx, domain.PurchaseStateReceived)
	if err != nil {
		t.Fatalf("list received: %v", err)
	}
	if len(received) != 1 || received[0].ReceivedAt == "" {
		t.Fatalf("received listing = %+v, want one stamped row", received)
	}

	if _, err := l.ListPurchases(ctx, "limbo"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown state: got %v, want ErrNotFound", err)
	}
}
