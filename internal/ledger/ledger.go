package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redmaple030/shopee-oms/internal/allocation"
	"github.com/redmaple030/shopee-oms/internal/cache"
	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/inventory"
	"github.com/redmaple030/shopee-oms/internal/store"
	"github.com/redmaple030/shopee-oms/internal/xid"
)

const dateLayout = "2006-01-02"

// Ledger owns the sales-order state machine and orchestrates inventory
// accounting and charge allocation. Every public operation reads the
// collections it needs, mutates working copies, and persists the result
// in a single atomic store write; a failure before that write leaves the
// ledger unchanged.
type Ledger struct {
	repo    store.Repository
	reports cache.ReportCache
	now     func() time.Time
}

func New(repo store.Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// WithReportCache registers the procurement report cache so writes that
// change stock or finalized sales drop stale report entries instead of
// letting them live out their TTL.
func (l *Ledger) WithReportCache(c cache.ReportCache) *Ledger {
	l.reports = c
	return l
}

func (l *Ledger) invalidateReports(ctx context.Context) {
	if l.reports == nil {
		return
	}
	if err := l.reports.Invalidate(ctx, cache.ProcurementReportPrefix); err != nil {
		log.Printf("[ledger] WARN: report cache invalidation failed: %v", err)
	}
}

// SubmitOrder validates the cart, allocates the platform fee and tax
// across lines by gross share, consumes stock, and writes the order into
// the open collection with the header attached to its first line.
// Overselling does not fail the submission; products left negative or at
// or below their safety stock come back as warnings.
func (l *Ledger) SubmitOrder(ctx context.Context, req domain.SubmitOrderRequest) (*domain.SubmitOrderResponse, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("submit order without lines: %w", store.ErrInvalidQuantity)
	}
	if req.TaxTotal < 0 {
		return nil, fmt.Errorf("submit order tax %v: %w", req.TaxTotal, store.ErrInvalidAmount)
	}
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return nil, fmt.Errorf("line %q qty %d: %w", line.Product, line.Qty, store.ErrInvalidQuantity)
		}
		if line.UnitPrice < 0 {
			return nil, fmt.Errorf("line %q price %v: %w", line.Product, line.UnitPrice, store.ErrInvalidAmount)
		}
	}

	products, err := l.repo.Products(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := l.repo.FeeProfiles(ctx)
	if err != nil {
		return nil, err
	}
	open, err := l.repo.OrderLines(ctx, store.CollectionOpen)
	if err != nil {
		return nil, err
	}

	book := inventory.NewBook(products)
	for _, line := range req.Lines {
		if _, ok := book.Get(line.Product); !ok {
			return nil, fmt.Errorf("line product %q: %w", line.Product, store.ErrNotFound)
		}
	}

	profileName := req.FeeProfile
	if profileName == "" {
		profileName = domain.FeeProfileStandard
	}
	profile, err := allocation.ResolveProfile(profiles, profileName, req.ManualFeeRate)
	if err != nil {
		return nil, err
	}

	lineGross := make([]float64, len(req.Lines))
	var totalGross float64
	for i, line := range req.Lines {
		lineGross[i] = float64(line.Qty) * line.UnitPrice
		totalGross += lineGross[i]
	}
	totalFee := allocation.PlatformFee(totalGross, profile)
	shares := allocation.Allocate(totalGross, totalFee, req.TaxTotal, lineGross)

	now := l.now().UTC()
	orderID := xid.New("so")
	header := normalizeHeader(req, now)

	var warnings []string
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for i, item := range req.Lines {
		oversold, remaining, err := book.Consume(item.Product, item.Qty, now)
		if err != nil {
			return nil, err
		}
		snapshot, _ := book.Get(item.Product)
		if oversold {
			warnings = append(warnings, fmt.Sprintf("product %q stock low: %d on hand", item.Product, remaining))
		} else if snapshot.OnHand <= snapshot.SafetyStock {
			warnings = append(warnings, fmt.Sprintf("product %q at or below safety stock: %d on hand, safety %d", item.Product, snapshot.OnHand, snapshot.SafetyStock))
		}
		cost := float64(item.Qty) * snapshot.UnitCost
		fee := allocation.Round2(shares[i].Fee)
		tax := allocation.Round2(shares[i].Tax)
		net := allocation.Round2(allocation.NetProfit(lineGross[i], cost, fee, tax))

		row := domain.OrderLine{
			OrderID:       orderID,
			Product:       item.Product,
			Qty:           item.Qty,
			UnitPrice:     item.UnitPrice,
			UnitCost:      snapshot.UnitCost,
			GrossAmount:   allocation.Round2(lineGross[i]),
			CostAmount:    allocation.Round2(cost),
			AllocatedFee:  fee,
			AllocatedTax:  tax,
			NetProfit:     net,
			MarginPercent: allocation.Round1(allocation.MarginPercent(net, lineGross[i])),
			DeductionNote: fmt.Sprintf("%s %.1f%%+%.0f", profile.Name, profile.RatePercent, profile.FixedFee),
		}
		if i == 0 {
			row.Date = header.Date
			row.Channel = header.Channel
			row.Buyer = header.Buyer
			row.ShipMethod = header.ShipMethod
			row.PickupRegion = header.PickupRegion
		}
		lines = append(lines, row)
	}

	var mut store.Mutation
	mut.SetProducts(book.Products()).SetOpen(append(open, lines...))
	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	l.invalidateReports(ctx)

	if len(warnings) > 0 {
		log.Printf("[ledger] WARN: order %s submitted with %d stock warnings", orderID, len(warnings))
	}
	return &domain.SubmitOrderResponse{OrderID: orderID, Lines: lines, Warnings: warnings}, nil
}

func normalizeHeader(req domain.SubmitOrderRequest, now time.Time) domain.OrderHeader {
	h := domain.OrderHeader{
		Date:         now.Format(dateLayout),
		Channel:      req.Channel,
		Buyer:        req.Buyer,
		ShipMethod:   req.ShipMethod,
		PickupRegion: req.PickupRegion,
	}
	if h.Channel == "" {
		h.Channel = domain.UnspecifiedChannel
	}
	if h.Buyer == "" {
		h.Buyer = domain.UnspecifiedBuyer
	}
	if h.ShipMethod == "" {
		h.ShipMethod = domain.UnspecifiedField
	}
	if h.PickupRegion == "" {
		h.PickupRegion = domain.UnspecifiedField
	}
	return h
}

// ModifyLine recomputes one open line against the order's already
// allocated totals: the fee and tax bases are not re-derived, only this
// line's proportional share is recalculated from its new gross. Stock is
// not adjusted.
func (l *Ledger) ModifyLine(ctx context.Context, req domain.ModifyLineRequest) (*domain.OrderLine, error) {
	if req.Qty <= 0 {
		return nil, fmt.Errorf("modify line qty %d: %w", req.Qty, store.ErrInvalidQuantity)
	}
	if req.UnitPrice < 0 {
		return nil, fmt.Errorf("modify line price %v: %w", req.UnitPrice, store.ErrInvalidAmount)
	}

	open, err := l.requireOpen(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	var totalGross, totalFee, totalTax float64
	lineIdx := -1
	for i, row := range open {
		if row.OrderID != req.OrderID {
			continue
		}
		totalGross += row.GrossAmount
		totalFee += row.AllocatedFee
		totalTax += row.AllocatedTax
		if row.Product == req.Product {
			lineIdx = i
		}
	}
	if lineIdx < 0 {
		return nil, fmt.Errorf("order %s line %q: %w", req.OrderID, req.Product, store.ErrNotFound)
	}

	row := open[lineIdx]
	gross := float64(req.Qty) * req.UnitPrice
	ratio := 0.0
	if totalGross > 0 {
		ratio = gross / totalGross
	}
	fee := allocation.Round2(totalFee * ratio)
	tax := allocation.Round2(totalTax * ratio)
	cost := float64(req.Qty) * row.UnitCost
	net := allocation.Round2(allocation.NetProfit(gross, cost, fee, tax))

	row.Qty = req.Qty
	row.UnitPrice = req.UnitPrice
	row.GrossAmount = allocation.Round2(gross)
	row.CostAmount = allocation.Round2(cost)
	row.AllocatedFee = fee
	row.AllocatedTax = tax
	row.NetProfit = net
	row.MarginPercent = allocation.Round1(allocation.MarginPercent(net, gross))
	open[lineIdx] = row

	var mut store.Mutation
	mut.SetOpen(open)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	return &row, nil
}

// RemoveLine drops one line from an open order. If the dropped line holds
// the order header, the header values migrate to another remaining line
// first; if it was the last line the whole order is deleted.
func (l *Ledger) RemoveLine(ctx context.Context, req domain.RemoveLineRequest) error {
	open, err := l.requireOpen(ctx, req.OrderID)
	if err != nil {
		return err
	}

	lineIdx := -1
	for i, row := range open {
		if row.OrderID == req.OrderID && row.Product == req.Product {
			lineIdx = i
			break
		}
	}
	if lineIdx < 0 {
		return fmt.Errorf("order %s line %q: %w", req.OrderID, req.Product, store.ErrNotFound)
	}

	if open[lineIdx].HoldsHeader() {
		for i, row := range open {
			if i != lineIdx && row.OrderID == req.OrderID {
				copyHeader(&open[i], open[lineIdx])
				break
			}
		}
	}

	open = append(open[:lineIdx], open[lineIdx+1:]...)

	var mut store.Mutation
	mut.SetOpen(open)
	return l.repo.Apply(ctx, mut)
}

// DeleteOrder removes every line of an open order unconditionally.
func (l *Ledger) DeleteOrder(ctx context.Context, orderID string) error {
	open, err := l.requireOpen(ctx, orderID)
	if err != nil {
		return err
	}

	kept := open[:0]
	for _, row := range open {
		if row.OrderID != orderID {
			kept = append(kept, row)
		}
	}

	var mut store.Mutation
	mut.SetOpen(kept)
	return l.repo.Apply(ctx, mut)
}

// ReturnLine moves one line of an open order to the returned collection,
// restores its quantity to stock, and records the reason verbatim. The
// returned row carries the order's resolved header so it stays readable
// on its own.
func (l *Ledger) ReturnLine(ctx context.Context, req domain.ReturnLineRequest) error {
	open, err := l.requireOpen(ctx, req.OrderID)
	if err != nil {
		return err
	}

	lineIdx := -1
	for i, row := range open {
		if row.OrderID == req.OrderID && row.Product == req.Product {
			lineIdx = i
			break
		}
	}
	if lineIdx < 0 {
		return fmt.Errorf("order %s line %q: %w", req.OrderID, req.Product, store.ErrNotFound)
	}

	return l.moveToReturned(ctx, open, req.OrderID, []int{lineIdx}, req.Reason)
}

// ReturnOrder moves every line of an open order to the returned
// collection and restores each quantity.
func (l *Ledger) ReturnOrder(ctx context.Context, req domain.ReturnOrderRequest) error {
	open, err := l.requireOpen(ctx, req.OrderID)
	if err != nil {
		return err
	}

	var idxs []int
	for i, row := range open {
		if row.OrderID == req.OrderID {
			idxs = append(idxs, i)
		}
	}
	return l.moveToReturned(ctx, open, req.OrderID, idxs, req.Reason)
}

func (l *Ledger) moveToReturned(ctx context.Context, open []domain.OrderLine, orderID string, idxs []int, reason string) error {
	products, err := l.repo.Products(ctx)
	if err != nil {
		return err
	}
	returned, err := l.repo.OrderLines(ctx, store.CollectionReturned)
	if err != nil {
		return err
	}

	header := resolveHeader(open, orderID)
	book := inventory.NewBook(products)
	now := l.now().UTC()

	moving := make(map[int]bool, len(idxs))
	headerLeaving := false
	for _, i := range idxs {
		moving[i] = true
		if open[i].HoldsHeader() {
			headerLeaving = true
		}
		row := open[i]
		row.Date = header.Date
		row.Channel = header.Channel
		row.Buyer = header.Buyer
		row.ShipMethod = header.ShipMethod
		row.PickupRegion = header.PickupRegion
		row.ReturnReason = reason
		returned = append(returned, row)

		if err := book.ReverseConsume(row.Product, row.Qty, now); err != nil {
			return err
		}
	}

	kept := make([]domain.OrderLine, 0, len(open)-len(idxs))
	for i, row := range open {
		if !moving[i] {
			kept = append(kept, row)
		}
	}
	if headerLeaving {
		for i := range kept {
			if kept[i].OrderID == orderID {
				kept[i].Date = header.Date
				kept[i].Channel = header.Channel
				kept[i].Buyer = header.Buyer
				kept[i].ShipMethod = header.ShipMethod
				kept[i].PickupRegion = header.PickupRegion
				break
			}
		}
	}

	var mut store.Mutation
	mut.SetProducts(book.Products()).SetOpen(kept).SetReturned(returned)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return err
	}
	l.invalidateReports(ctx)
	log.Printf("[ledger] order %s: %d line(s) returned (%s)", orderID, len(idxs), reason)
	return nil
}

// FinalizeOrder moves the whole order from the open buffer to the
// finalized collection. No inventory effect; stock was consumed at
// submission.
func (l *Ledger) FinalizeOrder(ctx context.Context, orderID string) error {
	open, err := l.requireOpen(ctx, orderID)
	if err != nil {
		return err
	}
	finalized, err := l.repo.OrderLines(ctx, store.CollectionFinalized)
	if err != nil {
		return err
	}

	kept := make([]domain.OrderLine, 0, len(open))
	for _, row := range open {
		if row.OrderID == orderID {
			finalized = append(finalized, row)
		} else {
			kept = append(kept, row)
		}
	}

	var mut store.Mutation
	mut.SetOpen(kept).SetFinalized(finalized)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return err
	}
	l.invalidateReports(ctx)
	return nil
}

// AmendFinalizedLine corrects clerical errors on a finalized line. Net
// profit and margin are recomputed from the amended values; inventory is
// never touched.
func (l *Ledger) AmendFinalizedLine(ctx context.Context, req domain.AmendFinalizedLineRequest) (*domain.OrderLine, error) {
	if req.Qty <= 0 {
		return nil, fmt.Errorf("amend line qty %d: %w", req.Qty, store.ErrInvalidQuantity)
	}
	if req.UnitPrice < 0 || (req.UnitCost != nil && *req.UnitCost < 0) || (req.Fee != nil && *req.Fee < 0) {
		return nil, fmt.Errorf("amend line %q: %w", req.Product, store.ErrInvalidAmount)
	}

	finalized, err := l.requireFinalized(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	lineIdx := -1
	for i, row := range finalized {
		if row.OrderID == req.OrderID && row.Product == req.Product {
			lineIdx = i
			break
		}
	}
	if lineIdx < 0 {
		return nil, fmt.Errorf("order %s line %q: %w", req.OrderID, req.Product, store.ErrNotFound)
	}

	row := finalized[lineIdx]
	row.Qty = req.Qty
	row.UnitPrice = req.UnitPrice
	if req.UnitCost != nil {
		row.UnitCost = *req.UnitCost
	}
	if req.Fee != nil {
		row.AllocatedFee = allocation.Round2(*req.Fee)
	}
	gross := float64(row.Qty) * row.UnitPrice
	cost := float64(row.Qty) * row.UnitCost
	row.GrossAmount = allocation.Round2(gross)
	row.CostAmount = allocation.Round2(cost)
	row.NetProfit = allocation.Round2(allocation.NetProfit(gross, cost, row.AllocatedFee, row.AllocatedTax))
	row.MarginPercent = allocation.Round1(allocation.MarginPercent(row.NetProfit, gross))
	finalized[lineIdx] = row

	var mut store.Mutation
	mut.SetFinalized(finalized)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	l.invalidateReports(ctx)
	return &row, nil
}

// PostSaleAdjustment records an after-sale cost against a finalized line:
// net profit drops by the extra cost and the adjustment is appended to
// the line's deduction note. Replacement and warranty adjustments also
// consume one unit of stock for the goods sent out.
func (l *Ledger) PostSaleAdjustment(ctx context.Context, req domain.PostSaleAdjustmentRequest) ([]string, error) {
	if req.ExtraCost < 0 {
		return nil, fmt.Errorf("adjustment cost %v: %w", req.ExtraCost, store.ErrInvalidAmount)
	}

	finalized, err := l.requireFinalized(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	lineIdx := -1
	for i, row := range finalized {
		if row.OrderID == req.OrderID && row.Product == req.Product {
			lineIdx = i
			break
		}
	}
	if lineIdx < 0 {
		return nil, fmt.Errorf("order %s line %q: %w", req.OrderID, req.Product, store.ErrNotFound)
	}

	row := finalized[lineIdx]
	row.NetProfit = allocation.Round2(row.NetProfit - req.ExtraCost)
	row.MarginPercent = allocation.Round1(allocation.MarginPercent(row.NetProfit, row.GrossAmount))
	tag := fmt.Sprintf("[%s:-%.2f]", req.Type, req.ExtraCost)
	if req.Remark != "" {
		tag += " " + req.Remark
	}
	if row.DeductionNote == "" {
		row.DeductionNote = tag
	} else {
		row.DeductionNote += "; " + tag
	}
	finalized[lineIdx] = row

	var mut store.Mutation
	mut.SetFinalized(finalized)

	var warnings []string
	if req.Type == domain.AdjustmentReplacement || req.Type == domain.AdjustmentWarranty {
		products, err := l.repo.Products(ctx)
		if err != nil {
			return nil, err
		}
		book := inventory.NewBook(products)
		oversold, remaining, err := book.Consume(req.Product, 1, l.now().UTC())
		if err != nil {
			return nil, err
		}
		if oversold {
			warnings = append(warnings, fmt.Sprintf("product %q stock low: %d on hand", req.Product, remaining))
		}
		mut.SetProducts(book.Products())
	}

	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	l.invalidateReports(ctx)
	return warnings, nil
}

// requireOpen loads the open collection and verifies the order lives
// there, distinguishing a terminal order from a missing one.
func (l *Ledger) requireOpen(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	open, err := l.repo.OrderLines(ctx, store.CollectionOpen)
	if err != nil {
		return nil, err
	}
	if containsOrder(open, orderID) {
		return open, nil
	}
	for _, coll := range []string{store.CollectionFinalized, store.CollectionReturned} {
		lines, err := l.repo.OrderLines(ctx, coll)
		if err != nil {
			return nil, err
		}
		if containsOrder(lines, orderID) {
			return nil, fmt.Errorf("order %s is not open: %w", orderID, store.ErrInvalidState)
		}
	}
	return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
}

func (l *Ledger) requireFinalized(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	finalized, err := l.repo.OrderLines(ctx, store.CollectionFinalized)
	if err != nil {
		return nil, err
	}
	if containsOrder(finalized, orderID) {
		return finalized, nil
	}
	for _, coll := range []string{store.CollectionOpen, store.CollectionReturned} {
		lines, err := l.repo.OrderLines(ctx, coll)
		if err != nil {
			return nil, err
		}
		if containsOrder(lines, orderID) {
			return nil, fmt.Errorf("order %s is not finalized: %w", orderID, store.ErrInvalidState)
		}
	}
	return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
}

func containsOrder(lines []domain.OrderLine, orderID string) bool {
	for _, row := range lines {
		if row.OrderID == orderID {
			return true
		}
	}
	return false
}

func copyHeader(dst *domain.OrderLine, src domain.OrderLine) {
	dst.Date = src.Date
	dst.Channel = src.Channel
	dst.Buyer = src.Buyer
	dst.ShipMethod = src.ShipMethod
	dst.PickupRegion = src.PickupRegion
}

func resolveHeader(lines []domain.OrderLine, orderID string) domain.OrderHeader {
	for _, row := range lines {
		if row.OrderID == orderID && row.HoldsHeader() {
			return domain.OrderHeader{
				Date:         row.Date,
				Channel:      row.Channel,
				Buyer:        row.Buyer,
				ShipMethod:   row.ShipMethod,
				PickupRegion: row.PickupRegion,
			}
		}
	}
	return domain.OrderHeader{}
}

// GetOrder assembles the read view of one order, searching the open,
// finalized and returned collections in that order.
func (l *Ledger) GetOrder(ctx context.Context, orderID string) (*domain.SalesOrder, error) {
	for _, c := range []struct {
		collection string
		state      string
	}{
		{store.CollectionOpen, domain.OrderStateOpen},
		{store.CollectionFinalized, domain.OrderStateFinalized},
		{store.CollectionReturned, domain.OrderStateReturned},
	} {
		lines, err := l.repo.OrderLines(ctx, c.collection)
		if err != nil {
			return nil, err
		}
		orders := assembleOrders(lines, c.state)
		for i := range orders {
			if orders[i].OrderID == orderID {
				return &orders[i], nil
			}
		}
	}
	return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
}

// ListOrders assembles the read view of every order in one state.
func (l *Ledger) ListOrders(ctx context.Context, state string) ([]domain.SalesOrder, error) {
	collection, ok := map[string]string{
		domain.OrderStateOpen:      store.CollectionOpen,
		domain.OrderStateFinalized: store.CollectionFinalized,
		domain.OrderStateReturned:  store.CollectionReturned,
	}[state]
	if !ok {
		return nil, fmt.Errorf("order state %q: %w", state, store.ErrNotFound)
	}
	lines, err := l.repo.OrderLines(ctx, collection)
	if err != nil {
		return nil, err
	}
	return assembleOrders(lines, state), nil
}

func assembleOrders(lines []domain.OrderLine, state string) []domain.SalesOrder {
	byID := map[string]int{}
	var orders []domain.SalesOrder
	for _, row := range lines {
		idx, seen := byID[row.OrderID]
		if !seen {
			idx = len(orders)
			byID[row.OrderID] = idx
			orders = append(orders, domain.SalesOrder{OrderID: row.OrderID, State: state})
		}
		orders[idx].Lines = append(orders[idx].Lines, row)
		if row.HoldsHeader() {
			orders[idx].Header = domain.OrderHeader{
				Date:         row.Date,
				Channel:      row.Channel,
				Buyer:        row.Buyer,
				ShipMethod:   row.ShipMethod,
				PickupRegion: row.PickupRegion,
			}
		}
	}
	return orders
}

// AddProduct creates a catalog entry with zero stock and zero cost. Cost
// and quantity only ever change through inventory accounting.
func (l *Ledger) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("product name required: %w", store.ErrInvalidAmount)
	}
	if req.SafetyStock < 0 {
		return nil, fmt.Errorf("safety stock %d: %w", req.SafetyStock, store.ErrInvalidQuantity)
	}

	products, err := l.repo.Products(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.Name == req.Name {
			return nil, fmt.Errorf("product %q already exists: %w", req.Name, store.ErrInvalidState)
		}
	}

	now := l.now().UTC()
	product := domain.Product{
		Name:          req.Name,
		SKU:           req.SKU,
		Category:      req.Category,
		SafetyStock:   req.SafetyStock,
		FirstListedAt: now,
		UpdatedAt:     now,
		Notes:         req.Notes,
	}
	products = append(products, product)

	var mut store.Mutation
	mut.SetProducts(products)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	l.invalidateReports(ctx)
	return &product, nil
}

// UpdateProduct edits catalog metadata only; cost and on-hand quantity
// are out of reach here.
func (l *Ledger) UpdateProduct(ctx context.Context, name string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if req.SafetyStock != nil && *req.SafetyStock < 0 {
		return nil, fmt.Errorf("safety stock %d: %w", *req.SafetyStock, store.ErrInvalidQuantity)
	}

	products, err := l.repo.Products(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, p := range products {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("product %q: %w", name, store.ErrNotFound)
	}

	p := products[idx]
	if req.SKU != nil {
		p.SKU = *req.SKU
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.SafetyStock != nil {
		p.SafetyStock = *req.SafetyStock
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	p.UpdatedAt = l.now().UTC()
	products[idx] = p

	var mut store.Mutation
	mut.SetProducts(products)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	l.invalidateReports(ctx)
	return &p, nil
}

// DeleteProduct hard-deletes a catalog entry. Historical order lines keep
// their cost snapshots and are unaffected.
func (l *Ledger) DeleteProduct(ctx context.Context, name string) error {
	products, err := l.repo.Products(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, p := range products {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("product %q: %w", name, store.ErrNotFound)
	}
	products = append(products[:idx], products[idx+1:]...)

	var mut store.Mutation
	mut.SetProducts(products)
	if err := l.repo.Apply(ctx, mut); err != nil {
		return err
	}
	l.invalidateReports(ctx)
	return nil
}

func (l *Ledger) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return l.repo.Products(ctx)
}

// CorrectStock overwrites a product's balance with a physically counted
// quantity and reports the delta.
func (l *Ledger) CorrectStock(ctx context.Context, req domain.StockCorrectionRequest) (*domain.StockCorrectionResponse, error) {
	products, err := l.repo.Products(ctx)
	if err != nil {
		return nil, err
	}
	book := inventory.NewBook(products)
	before, ok := book.Get(req.Product)
	if !ok {
		return nil, fmt.Errorf("product %q: %w", req.Product, store.ErrNotFound)
	}
	delta, err := book.CorrectCount(req.Product, req.CountedQty, l.now().UTC())
	if err != nil {
		return nil, err
	}

	var mut store.Mutation
	mut.SetProducts(book.Products())
	if err := l.repo.Apply(ctx, mut); err != nil {
		return nil, err
	}
	l.invalidateReports(ctx)

	log.Printf("[ledger] stock correction %q: %d -> %d (%s)", req.Product, before.OnHand, req.CountedQty, req.Note)
	return &domain.StockCorrectionResponse{
		Product:    req.Product,
		SystemQty:  before.OnHand,
		CountedQty: req.CountedQty,
		DeltaQty:   delta,
	}, nil
}

// ExportState hands the full ledger to the backup collaborator as one
// opaque blob. Never called by any other ledger operation.
func (l *Ledger) ExportState(ctx context.Context) (*domain.Snapshot, error) {
	return l.repo.ExportState(ctx)
}

// ImportState replaces the full ledger from a backup blob.
func (l *Ledger) ImportState(ctx context.Context, snap domain.Snapshot) error {
	if err := l.repo.ImportState(ctx, snap); err != nil {
		return err
	}
	l.invalidateReports(ctx)
	log.Printf("[ledger] state imported: %d products, %d open lines, %d finalized lines",
		len(snap.Products), len(snap.OpenLines), len(snap.FinalizedLines))
	return nil
}
