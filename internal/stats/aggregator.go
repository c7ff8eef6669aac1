package stats

import (
	"context"
	"fmt"
	"slices"
	"time"

	"scanpos/backend/internal/cache"
	"scanpos/backend/internal/domain"
	"scanpos/backend/internal/store"
)

const topSize = 10

type Aggregator struct {
	repo     store.Repository
	cache    cache.StatsCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAggregator(repo store.Repository, cacheStore cache.StatsCache, cacheTTL time.Duration) *Aggregator {
	if cacheStore == nil {
		cacheStore = cache.NoopStatsCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 20 * time.Second
	}

	return &Aggregator{
		repo:     repo,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// ForPeriod rolls up sale entries over the requested window: totals plus the
// top sellers by quantity and by profit. The window starts at the beginning
// of the current day, week or month and ends now.
func (a *Aggregator) ForPeriod(ctx context.Context, period string) (domain.StatsResponse, error) {
	now := a.now().UTC()
	from, err := windowStart(period, now)
	if err != nil {
		return domain.StatsResponse{}, err
	}

	cacheKey := fmt.Sprintf("stats:%s:%d", period, from.Unix())
	if cached, ok, cacheErr := a.cache.Get(ctx, cacheKey); cacheErr == nil && ok {
		return *cached, nil
	}

	totals, byProduct, err := a.repo.AggregateSales(ctx, from, now)
	if err != nil {
		return domain.StatsResponse{}, err
	}

	resp := domain.StatsResponse{
		Period:        period,
		From:          from,
		To:            now,
		SalesCount:    totals.SalesCount,
		TotalCents:    totals.TotalCents,
		ProfitCents:   totals.ProfitCents,
		TopByQuantity: topBy(byProduct, byQuantity),
		TopByProfit:   topBy(byProduct, byProfit),
	}

	if err := a.cache.Set(ctx, cacheKey, &resp, a.cacheTTL); err != nil {
		// A cold cache only costs a recomputation on the next request.
		return resp, nil
	}
	return resp, nil
}

func windowStart(period string, now time.Time) (time.Time, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case domain.StatsPeriodDay:
		return dayStart, nil
	case domain.StatsPeriodWeek:
		return dayStart.AddDate(0, 0, -6), nil
	case domain.StatsPeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, store.ErrInvalidInput
	}
}

func byQuantity(a, b domain.ProductStat) int {
	if a.QuantitySold != b.QuantitySold {
		return b.QuantitySold - a.QuantitySold
	}
	if a.TotalCents != b.TotalCents {
		if b.TotalCents > a.TotalCents {
			return 1
		}
		return -1
	}
	return cmpString(a.ProductID, b.ProductID)
}

func byProfit(a, b domain.ProductStat) int {
	if a.ProfitCents != b.ProfitCents {
		if b.ProfitCents > a.ProfitCents {
			return 1
		}
		return -1
	}
	if a.QuantitySold != b.QuantitySold {
		return b.QuantitySold - a.QuantitySold
	}
	return cmpString(a.ProductID, b.ProductID)
}

func topBy(stats []domain.ProductStat, cmp func(a, b domain.ProductStat) int) []domain.ProductStat {
	sorted := make([]domain.ProductStat, len(stats))
	copy(sorted, stats)
	slices.SortFunc(sorted, cmp)
	if len(sorted) > topSize {
		sorted = sorted[:topSize]
	}
	return sorted
}

func cmpString(a string, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
