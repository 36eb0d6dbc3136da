package procurement

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redmaple030/shopee-oms/internal/cache"
	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

const (
	DefaultDaysToCover       = 30
	DefaultSafetyMultiplier  = 1.0
	DefaultVelocityThreshold = 0.1
)

// Analyzer produces the reorder report from finalized sell-through and
// current stock. Read-only: it never mutates the ledger.
type Analyzer struct {
	repo     store.Repository
	cache    cache.ReportCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAnalyzer(repo store.Repository, reportCache cache.ReportCache, cacheTTL time.Duration) *Analyzer {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	return &Analyzer{repo: repo, cache: reportCache, cacheTTL: cacheTTL, now: time.Now}
}

// Report computes per-product velocity, target inventory and a suggested
// order quantity. Products with sufficient stock are omitted.
func (a *Analyzer) Report(ctx context.Context, params domain.ProcurementParams) (*domain.ProcurementReport, error) {
	params = normalizeParams(params)

	cacheKey := buildCacheKey(params)
	if cached, ok, err := a.cache.Get(ctx, cacheKey); err == nil && ok {
		return cached, nil
	}

	products, err := a.repo.Products(ctx)
	if err != nil {
		return nil, err
	}
	finalized, err := a.repo.OrderLines(ctx, store.CollectionFinalized)
	if err != nil {
		return nil, err
	}

	soldByProduct := make(map[string]int, len(products))
	for _, line := range finalized {
		soldByProduct[line.Product] += line.Qty
	}

	now := a.now().UTC()
	report := &domain.ProcurementReport{
		GeneratedAt: now.Format(time.RFC3339),
		Params:      params,
	}
	for _, p := range products {
		velocity := Velocity(soldByProduct[p.Name], p.FirstListedAt, now)
		target := velocity*float64(params.DaysToCover) + float64(p.SafetyStock)*params.SafetyMultiplier
		suggested := SuggestedQty(target, p.OnHand)

		status, reported := classify(p, velocity, params)
		if !reported {
			continue
		}
		report.Items = append(report.Items, domain.ProcurementItem{
			Product:       p.Name,
			SKU:           p.SKU,
			Category:      p.Category,
			OnHand:        p.OnHand,
			SafetyStock:   p.SafetyStock,
			Velocity:      round2(velocity),
			TargetLevel:   round2(target),
			SuggestedQty:  suggested,
			Status:        status,
			UnitCost:      p.UnitCost,
			EstimatedCost: round2(float64(suggested) * p.UnitCost),
		})
	}

	_ = a.cache.Set(ctx, cacheKey, report, a.cacheTTL)
	return report, nil
}

// Velocity is units sold per day since first listing, with a one-day
// floor so same-day sales do not inflate the rate.
func Velocity(totalSold int, firstListedAt, now time.Time) float64 {
	days := now.Sub(firstListedAt).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(totalSold) / days
}

// SuggestedQty is the shortfall against the target level, rounded up and
// floored at zero.
func SuggestedQty(target float64, onHand int) int {
	return int(math.Ceil(math.Max(target-float64(onHand), 0)))
}

func classify(p domain.Product, velocity float64, params domain.ProcurementParams) (string, bool) {
	if p.OnHand < 0 {
		return domain.ProcurementOversold, true
	}
	threshold := float64(p.SafetyStock) * params.SafetyMultiplier
	if float64(p.OnHand) <= threshold {
		if velocity >= params.VelocityThreshold {
			return domain.ProcurementUrgent, true
		}
		if p.SafetyStock > 0 {
			return domain.ProcurementLow, true
		}
	}
	return "", false
}

func normalizeParams(params domain.ProcurementParams) domain.ProcurementParams {
	if params.DaysToCover <= 0 {
		params.DaysToCover = DefaultDaysToCover
	}
	if params.SafetyMultiplier <= 0 {
		params.SafetyMultiplier = DefaultSafetyMultiplier
	}
	if params.VelocityThreshold <= 0 {
		params.VelocityThreshold = DefaultVelocityThreshold
	}
	return params
}

func buildCacheKey(params domain.ProcurementParams) string {
	raw := fmt.Sprintf("d:%d|m:%.4f|t:%.4f", params.DaysToCover, params.SafetyMultiplier, params.VelocityThreshold)
	hash := sha1.Sum([]byte(raw))
	return cache.ProcurementReportPrefix + hex.EncodeToString(hash[:])
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
