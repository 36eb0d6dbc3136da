package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

func testBook() *Book {
	now := time.Now().UTC()
	return NewBook([]domain.Product{
		{Name: "Widget", UnitCost: 0, OnHand: 0, FirstListedAt: now, UpdatedAt: now},
		{Name: "Gadget", UnitCost: 12.5, OnHand: 40, FirstListedAt: now, UpdatedAt: now},
	})
}

func TestReceiveFromZeroStock(t *testing.T) {
	b := testBook()
	now := time.Now().UTC()

	if err := b.Receive("Widget", 10, 5, 10, 0, now); err != nil {
		t.Fatalf("receive: %v", err)
	}
	p, _ := b.Get("Widget")
	if p.UnitCost != 6.0 {
		t.Fatalf("cost = %v, want 6.0", p.UnitCost)
	}
	if p.OnHand != 10 {
		t.Fatalf("on hand = %d, want 10", p.OnHand)
	}
	if p.LastRestockedAt == nil || !p.LastRestockedAt.Equal(now) {
		t.Fatalf("last restocked not stamped: %v", p.LastRestockedAt)
	}
}

func TestReceiveWeightedAverage(t *testing.T) {
	b := testBook()
	now := time.Now().UTC()

	if err := b.Receive("Widget", 10, 5, 10, 0, now); err != nil {
		t.Fatalf("first receive: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := b.Consume("Widget", 1, now); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}
	if err := b.Receive("Widget", 10, 4, 0, 0, now); err != nil {
		t.Fatalf("second receive: %v", err)
	}
	p, _ := b.Get("Widget")
	if p.UnitCost != 4.82 {
		t.Fatalf("cost = %v, want 4.82", p.UnitCost)
	}
	if p.OnHand != 17 {
		t.Fatalf("on hand = %d, want 17", p.OnHand)
	}
}

func TestReceiveIgnoresDeficit(t *testing.T) {
	b := testBook()
	now := time.Now().UTC()

	if _, _, err := b.Consume("Widget", 5, now); err != nil {
		t.Fatalf("consume into deficit: %v", err)
	}
	if err := b.Receive("Widget", 10, 3, 0, 0, now); err != nil {
		t.Fatalf("receive: %v", err)
	}
	p, _ := b.Get("Widget")
	if p.UnitCost != 3.0 {
		t.Fatalf("cost = %v, want 3.0 (deficit not cost-weighted)", p.UnitCost)
	}
	if p.OnHand != 5 {
		t.Fatalf("on hand = %d, want 5", p.OnHand)
	}
}

func TestReceiveErrors(t *testing.T) {
	b := testBook()
	now := time.Now().UTC()

	if err := b.Receive("Widget", 0, 1, 0, 0, now); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("zero qty: got %v, want ErrInvalidQuantity", err)
	}
	if err := b.Receive("Widget", 1, -1, 0, 0, now); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("negative price: got %v, want ErrInvalidAmount", err)
	}
	if err := b.Receive("Nope", 1, 1, 0, 0, now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown product: got %v, want ErrNotFound", err)
	}
}

func TestConsumeOversellFlag(t *testing.T) {
	b := testBook()
	now := time.Now().UTC()

	oversold, remaining, err := b.Consume("Gadget", 39, now)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if oversold || remaining != 1 {
		t.Fatalf("oversold=%v remaining=%d, want false/1", oversold, remaining)
	}

	oversold, remaining, err = b.Consume("Gadget", 4, now)
	if err != nil {
		t.Fatalf("consume past zero: %v", err)
	}
	if !oversold || remaining != -3 {
		t.Fatalf("oversold=%v remaining=%d, want true/-3", oversold, remaining)
	}

	p, _ := b.Get("Gadget")
	if p.UnitCost != 12.5 {
		t.Fatalf("consume must not touch cost, got %v", p.UnitCost)
	}
}

func TestConsumeReverseRoundTrip(t *testing.T) {
	b := testBook()
	now := time.Now().UTC()

	before, _ := b.Get("Gadget")
	if _, _, err := b.Consume("Gadget", 7, now); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := b.ReverseConsume("Gadget", 7, now); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	after, _ := b.Get("Gadget")
	if after.OnHand != before.OnHand {
		t.Fatalf("on hand = %d, want %d restored", after.OnHand, before.OnHand)
	}
}

func TestCorrectCount(t *testing.T) {
	b := testBook()
	now := time.Now().UTC()

	delta, err := b.CorrectCount("Gadget", 35, now)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if delta != -5 {
		t.Fatalf("delta = %d, want -5", delta)
	}
	p, _ := b.Get("Gadget")
	if p.OnHand != 35 {
		t.Fatalf("on hand = %d, want 35", p.OnHand)
	}
	if _, err := b.CorrectCount("Nope", 1, now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown product: got %v, want ErrNotFound", err)
	}
}

func TestProductsPreservesOrder(t *testing.T) {
	b := testBook()
	out := b.Products()
	if len(out) != 2 || out[0].Name != "Widget" || out[1].Name != "Gadget" {
		t.Fatalf("unexpected order: %+v", out)
	}
}
