package allocation

import (
	"fmt"
	"math"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

// Share is one line's slice of the order-level charges, allocated at full
// precision. Allocations are not forced to sum exactly to the totals; drift
// of at most one minor currency unit per order is accepted so the per-line
// math stays auditable.
type Share struct {
	Fee float64
	Tax float64
}

// Allocate distributes totalFee and totalTax across lines proportionally
// to each line's share of gross sales. A zero total gross yields zero
// shares for every line.
func Allocate(totalGross, totalFee, totalTax float64, lineGross []float64) []Share {
	shares := make([]Share, len(lineGross))
	if totalGross <= 0 {
		return shares
	}
	for i, gross := range lineGross {
		ratio := gross / totalGross
		shares[i] = Share{Fee: totalFee * ratio, Tax: totalTax * ratio}
	}
	return shares
}

// PlatformFee computes the order-level platform fee from a fee profile.
func PlatformFee(gross float64, profile domain.FeeProfile) float64 {
	return gross*profile.RatePercent/100 + profile.FixedFee
}

// ResolveProfile looks up a fee profile by name. The reserved manual
// profile takes the caller-supplied rate with zero fixed fee and is never
// read from the persisted profile list.
func ResolveProfile(profiles []domain.FeeProfile, name string, manualRate *float64) (domain.FeeProfile, error) {
	if name == domain.FeeProfileManual {
		if manualRate == nil || *manualRate < 0 {
			return domain.FeeProfile{}, fmt.Errorf("manual fee profile requires a rate: %w", store.ErrInvalidAmount)
		}
		return domain.FeeProfile{Name: domain.FeeProfileManual, RatePercent: *manualRate, FixedFee: 0}, nil
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return domain.FeeProfile{}, fmt.Errorf("fee profile %q: %w", name, store.ErrNotFound)
}

// NetProfit derives a line's profit from its gross, cost and allocated
// charges.
func NetProfit(gross, cost, fee, tax float64) float64 {
	return gross - cost - fee - tax
}

// MarginPercent is net over gross as a percentage, zero when gross is zero.
func MarginPercent(net, gross float64) float64 {
	if gross == 0 {
		return 0
	}
	return net / gross * 100
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
