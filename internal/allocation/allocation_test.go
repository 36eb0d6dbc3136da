package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

func TestAllocateProportional(t *testing.T) {
	shares := Allocate(100, 10, 5, []float64{60, 40})
	if shares[0].Fee != 6 || shares[1].Fee != 4 {
		t.Fatalf("unexpected fee shares: %+v", shares)
	}
	if shares[0].Tax != 3 || shares[1].Tax != 2 {
		t.Fatalf("unexpected tax shares: %+v", shares)
	}
}

func TestAllocateZeroGross(t *testing.T) {
	shares := Allocate(0, 10, 5, []float64{0, 0})
	for i, s := range shares {
		if s.Fee != 0 || s.Tax != 0 {
			t.Fatalf("line %d: expected zero share, got %+v", i, s)
		}
	}
}

func TestAllocateConservation(t *testing.T) {
	lineGross := []float64{19.99, 7.33, 120.5, 0.01}
	var totalGross float64
	for _, g := range lineGross {
		totalGross += g
	}
	totalFee := 21.37

	shares := Allocate(totalGross, totalFee, 0, lineGross)
	var sum float64
	for _, s := range shares {
		if s.Fee < 0 {
			t.Fatalf("negative fee share: %+v", s)
		}
		sum += s.Fee
	}
	if math.Abs(sum-totalFee) > 0.01 {
		t.Fatalf("fee shares sum to %v, want %v within one cent", sum, totalFee)
	}
}

func TestPlatformFee(t *testing.T) {
	fee := PlatformFee(60, domain.FeeProfile{Name: "x", RatePercent: 14, FixedFee: 0})
	if Round2(fee) != 8.4 {
		t.Fatalf("fee = %v, want 8.4", fee)
	}
	fee = PlatformFee(100, domain.FeeProfile{Name: "y", RatePercent: 8, FixedFee: 60})
	if fee != 68 {
		t.Fatalf("fee = %v, want 68", fee)
	}
}

func TestResolveProfile(t *testing.T) {
	profiles := store.DefaultFeeProfiles()

	p, err := ResolveProfile(profiles, domain.FeeProfileStandard, nil)
	if err != nil {
		t.Fatalf("resolve standard: %v", err)
	}
	if p.RatePercent != 14.5 || p.FixedFee != 0 {
		t.Fatalf("unexpected standard profile: %+v", p)
	}

	rate := 5.5
	p, err = ResolveProfile(profiles, domain.FeeProfileManual, &rate)
	if err != nil {
		t.Fatalf("resolve manual: %v", err)
	}
	if p.RatePercent != 5.5 || p.FixedFee != 0 {
		t.Fatalf("manual profile must take caller rate with zero fixed fee: %+v", p)
	}

	if _, err := ResolveProfile(profiles, domain.FeeProfileManual, nil); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("manual without rate: got %v, want ErrInvalidAmount", err)
	}
	if _, err := ResolveProfile(profiles, "nope", nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown profile: got %v, want ErrNotFound", err)
	}
}

func TestNetProfitAndMargin(t *testing.T) {
	net := NetProfit(60, 18, 8.4, 0)
	if Round2(net) != 33.6 {
		t.Fatalf("net = %v, want 33.6", net)
	}
	if MarginPercent(0, 0) != 0 {
		t.Fatalf("zero gross must yield zero margin")
	}
	if m := Round1(MarginPercent(net, 60)); m != 56.0 {
		t.Fatalf("margin = %v, want 56.0", m)
	}
}
