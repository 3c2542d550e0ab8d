package collector

import (
	"context"
	"time"

	"WhaleConsensus/internal/model"
)

// PositionProvider returns a wallet's current holdings, possibly empty.
type PositionProvider interface {
	FetchPositions(ctx context.Context, wallet string) ([]model.RawPosition, error)
}

// ActivityProvider returns a bounded, newest-first list of a wallet's fills.
type ActivityProvider interface {
	FetchActivity(ctx context.Context, wallet string, limit int) ([]model.Trade, error)
}

// PriceHistoryProvider returns timestamped samples covering lookback.
type PriceHistoryProvider interface {
	FetchPriceHistory(ctx context.Context, tokenID string, lookback time.Duration) ([]model.PricePoint, error)
}

// MarketProvider returns market metadata including category tags.
type MarketProvider interface {
	FetchMarket(ctx context.Context, conditionID string) (model.Market, error)
}

// Fetcher is the full upstream surface the collector needs.
type Fetcher interface {
	PositionProvider
	ActivityProvider
	PriceHistoryProvider
	MarketProvider
	Name() string
}
