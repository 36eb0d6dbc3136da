package inventory

import (
	"fmt"
	"math"
	"time"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

// Book is an in-memory working copy of the product collection. Lifecycle
// operations mutate a Book and persist the result in one atomic write; a
// Book is never shared across operations.
type Book struct {
	byName map[string]*domain.Product
	order  []string
}

func NewBook(products []domain.Product) *Book {
	b := &Book{byName: make(map[string]*domain.Product, len(products))}
	for i := range products {
		p := products[i]
		b.byName[p.Name] = &p
		b.order = append(b.order, p.Name)
	}
	return b
}

func (b *Book) Get(name string) (domain.Product, bool) {
	p, ok := b.byName[name]
	if !ok {
		return domain.Product{}, false
	}
	return *p, true
}

// Receive books a purchase batch into stock. Landed cost is the batch
// price plus its shipping and tax allocations; the new unit cost is the
// quantity-weighted average, except that a zero or negative prior balance
// is not cost-weighted (the deficit carries no cost information).
func (b *Book) Receive(name string, qty int, unitPrice, shipAlloc, taxAlloc float64, now time.Time) error {
	if qty <= 0 {
		return fmt.Errorf("receive %q qty %d: %w", name, qty, store.ErrInvalidQuantity)
	}
	if unitPrice < 0 || shipAlloc < 0 || taxAlloc < 0 {
		return fmt.Errorf("receive %q: %w", name, store.ErrInvalidAmount)
	}
	p, ok := b.byName[name]
	if !ok {
		return fmt.Errorf("receive %q: %w", name, store.ErrNotFound)
	}

	landed := float64(qty)*unitPrice + shipAlloc + taxAlloc
	oldQty := p.OnHand
	if oldQty <= 0 {
		p.UnitCost = round2(landed / float64(qty))
	} else {
		p.UnitCost = round2((float64(oldQty)*p.UnitCost + landed) / float64(oldQty+qty))
	}
	p.OnHand = oldQty + qty
	if p.OnHand > oldQty {
		ts := now
		p.LastRestockedAt = &ts
	}
	p.UpdatedAt = now
	return nil
}

// Consume deducts a sale. The balance may go negative; overselling is
// reported to the caller as a flag, never as an error.
func (b *Book) Consume(name string, qty int, now time.Time) (oversold bool, remaining int, err error) {
	if qty <= 0 {
		return false, 0, fmt.Errorf("consume %q qty %d: %w", name, qty, store.ErrInvalidQuantity)
	}
	p, ok := b.byName[name]
	if !ok {
		return false, 0, fmt.Errorf("consume %q: %w", name, store.ErrNotFound)
	}
	p.OnHand -= qty
	p.UpdatedAt = now
	return p.OnHand <= 0, p.OnHand, nil
}

// ReverseConsume adds a returned or cancelled quantity back. Cost is
// untouched; a return carries no new cost information.
func (b *Book) ReverseConsume(name string, qty int, now time.Time) error {
	if qty <= 0 {
		return fmt.Errorf("reverse %q qty %d: %w", name, qty, store.ErrInvalidQuantity)
	}
	p, ok := b.byName[name]
	if !ok {
		return fmt.Errorf("reverse %q: %w", name, store.ErrNotFound)
	}
	p.OnHand += qty
	p.UpdatedAt = now
	return nil
}

// CorrectCount sets the balance to a physically counted quantity and
// reports the delta. Used by manual stock corrections only.
func (b *Book) CorrectCount(name string, counted int, now time.Time) (delta int, err error) {
	p, ok := b.byName[name]
	if !ok {
		return 0, fmt.Errorf("correct %q: %w", name, store.ErrNotFound)
	}
	delta = counted - p.OnHand
	p.OnHand = counted
	p.UpdatedAt = now
	return delta, nil
}

// Products returns the collection in its original row order, ready for a
// store mutation.
func (b *Book) Products() []domain.Product {
	out := make([]domain.Product, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.byName[name])
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
