package cache

import (
	"context"
	"time"

	"stockflow/backend/internal/domain"
)

// MetricsCache holds recently computed dashboard aggregates so repeated
// dashboard loads do not re-run the aggregation queries.
type MetricsCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardMetrics, bool, error)
	Set(ctx context.Context, key string, value *domain.DashboardMetrics, ttl time.Duration) error
}

// NoopMetricsCache is used when no redis address is configured.
type NoopMetricsCache struct{}

func (NoopMetricsCache) Get(ctx context.Context, key string) (*domain.DashboardMetrics, bool, error) {
	return nil, false, nil
}

func (NoopMetricsCache) Set(ctx context.Context, key string, value *domain.DashboardMetrics, ttl time.Duration) error {
	return nil
}
