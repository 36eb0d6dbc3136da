package cache

import (
	"context"
	"time"

	"github.com/redmaple030/shopee-oms/internal/domain"
)

// ProcurementReportPrefix is the key namespace for cached procurement
// reports. Writers invalidate it wholesale; readers key individual
// entries under it by parameter hash.
const ProcurementReportPrefix = "oms:procurement:"

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.ProcurementReport, bool, error)
	Set(ctx context.Context, key string, value *domain.ProcurementReport, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.ProcurementReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.ProcurementReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
