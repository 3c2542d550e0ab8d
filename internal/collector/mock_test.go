package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"WhaleConsensus/internal/model"
)

// MockFetcher serves fixed in-memory data to Collector tests.
type MockFetcher struct {
	Positions map[string][]model.RawPosition
	Activity  map[string][]model.Trade
	History   map[string][]model.PricePoint
	Markets   map[string]model.Market
	// Fail makes every call keyed by one of these wallets, tokens or
	// markets return an error.
	Fail map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls reports how many times an endpoint was hit.
func (m *MockFetcher) Calls(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[endpoint]
}

func (m *MockFetcher) record(endpoint, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[endpoint]++
	if m.Fail[key] {
		return fmt.Errorf("mock %s failure for %s", endpoint, key)
	}
	return nil
}

func (m *MockFetcher) FetchPositions(_ context.Context, wallet string) ([]model.RawPosition, error) {
	if err := m.record("positions", wallet); err != nil {
		return nil, err
	}
	return append([]model.RawPosition(nil), m.Positions[wallet]...), nil
}

func (m *MockFetcher) FetchActivity(_ context.Context, wallet string, limit int) ([]model.Trade, error) {
	if err := m.record("activity", wallet); err != nil {
		return nil, err
	}
	trades := m.Activity[wallet]
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

func (m *MockFetcher) FetchPriceHistory(_ context.Context, tokenID string, _ time.Duration) ([]model.PricePoint, error) {
	if err := m.record("prices-history", tokenID); err != nil {
		return nil, err
	}
	return m.History[tokenID], nil
}

func (m *MockFetcher) FetchMarket(_ context.Context, conditionID string) (model.Market, error) {
	if err := m.record("markets", conditionID); err != nil {
		return model.Market{}, err
	}
	mk, ok := m.Markets[conditionID]
	if !ok {
		return model.Market{}, fmt.Errorf("market %s not found", conditionID)
	}
	return mk, nil
}
