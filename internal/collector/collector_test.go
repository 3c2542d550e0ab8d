package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhaleConsensus/internal/model"
)

func newTestFetcher(srv *httptest.Server) *PolymarketFetcher {
	f := NewPolymarketFetcher(PolymarketConfig{
		DataURL:       srv.URL,
		ClobURL:       srv.URL,
		GammaURL:      srv.URL,
		RatePerSecond: 1000,
		Burst:         100,
	})
	f.backoff = func(int) time.Duration { return 0 }
	return f
}

func TestPolymarketFetcher_Positions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, "0xabc", r.URL.Query().Get("user"))
		w.Write([]byte(`[
			{"conditionId":"c1","outcome":"Yes","size":120.5,"avgPrice":0.41,"curPrice":0.47,"title":"Will it rain?","slug":"rain","asset":"t1"},
			{"conditionId":"c2","outcome":"No","size":10,"avgPrice":0.2,"curPrice":0.25,"title":"Other","slug":"other","asset":"t2"},
			{"conditionId":"c3","outcome":"Yes","size":0,"avgPrice":0.2,"curPrice":0.25,"title":"Closed","slug":"closed","asset":"t3"}
		]`))
	}))
	defer srv.Close()

	got, err := newTestFetcher(srv).FetchPositions(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.RawPosition{
		Wallet:       "0xabc",
		MarketID:     "c1",
		MarketName:   "Will it rain?",
		MarketSlug:   "rain",
		OutcomeLabel: "Will it rain?",
		TokenID:      "t1",
		Side:         model.SideYes,
		Size:         120.5,
		EntryPrice:   0.41,
		CurrentPrice: 0.47,
	}, got[0])
	assert.Equal(t, model.SideNo, got[1].Side)
}

func TestPolymarketFetcher_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"asset":"t1","conditionId":"c1","side":"BUY","price":0.4,"size":100,"timestamp":1700000000},{"asset":"t1","side":"REDEEM","timestamp":1700000100}]`))
	}))
	defer srv.Close()

	got, err := newTestFetcher(srv).FetchActivity(context.Background(), "0xabc", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, got, 1)
	assert.Equal(t, model.TradeBuy, got[0].Side)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got[0].Timestamp)
}

func TestPolymarketFetcher_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad wallet", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv).FetchPositions(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPolymarketFetcher_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv).FetchPriceHistory(context.Background(), "t1", 7*24*time.Hour)
	require.Error(t, err)
	assert.Equal(t, int32(maxAttempts), atomic.LoadInt32(&calls))
}

func TestPolymarketFetcher_PriceHistoryAndMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prices-history":
			assert.Equal(t, "1w", r.URL.Query().Get("interval"))
			assert.Equal(t, "60", r.URL.Query().Get("fidelity"))
			w.Write([]byte(`{"history":[{"t":1700000000,"p":0.6},{"t":1700003600,"p":0.7}]}`))
		case "/markets":
			if r.URL.Query().Get("condition_ids") == "c1" {
				w.Write([]byte(`[{"conditionId":"c1","question":"Q1","slug":"q1","tags":["Politics","US"]}]`))
				return
			}
			w.Write([]byte(`[{"conditionId":"c2","question":"Q2","slug":"q2","tags":[{"label":"NBA","slug":"nba"}]}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	f := newTestFetcher(srv)
	ctx := context.Background()

	pts, err := f.FetchPriceHistory(ctx, "t1", 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, 0.7, pts[1].Price)

	m1, err := f.FetchMarket(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Politics", "US"}, m1.Tags)

	m2, err := f.FetchMarket(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"nba"}, m2.Tags)
}

func TestPolymarketFetcher_BreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	f := newTestFetcher(srv)

	for i := 0; i < 3; i++ {
		_, err := f.FetchPositions(context.Background(), "0xabc")
		require.Error(t, err)
	}
	_, err := f.FetchPositions(context.Background(), "0xabc")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3*maxAttempts), atomic.LoadInt32(&calls), "open breaker must short-circuit")
}

func TestPolymarketFetcher_ClientErrorsKeepBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user") == "0xmissing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	f := newTestFetcher(srv)

	for i := 0; i < 5; i++ {
		_, err := f.FetchPositions(context.Background(), "0xmissing")
		require.Error(t, err)
	}
	got, err := f.FetchPositions(context.Background(), "0xhealthy")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPolymarketFetcher_CancelledCycleKeepsBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user") == "0xslow" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`[{"conditionId":"c1","outcome":"Yes","size":10,"avgPrice":0.4,"curPrice":0.5,"title":"T","asset":"t1"}]`))
	}))
	defer srv.Close()
	f := newTestFetcher(srv)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := f.FetchPositions(ctx, "0xslow")
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	got, err := f.FetchPositions(context.Background(), "0xhealthy")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, gobreaker.StateClosed, f.breaker.State())
}

func TestBreakerSuccess(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), true},
		{"deadline", context.DeadlineExceeded, true},
		{"limiter", fmt.Errorf("%w: burst exceeded", errRateWait), true},
		{"not found", &statusError{Code: http.StatusNotFound, Status: "404 Not Found"}, true},
		{"too many requests", &statusError{Code: http.StatusTooManyRequests, Status: "429 Too Many Requests"}, false},
		{"server error", &statusError{Code: http.StatusBadGateway, Status: "502 Bad Gateway"}, false},
		{"transport", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, breakerSuccess(tc.err))
		})
	}
}

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opened := now.Add(-48 * time.Hour)
	pos := func(wallet string) model.RawPosition {
		return model.RawPosition{
			Wallet: wallet, MarketID: "c1", MarketName: "Q1", OutcomeLabel: "Q1", TokenID: "t1",
			Side: model.SideYes, Size: 100, EntryPrice: 0.5, CurrentPrice: 0.6,
		}
	}
	mock := &MockFetcher{
		Positions: map[string][]model.RawPosition{
			"0xa": {pos("0xa")},
			"0xb": {pos("0xb")},
		},
		Activity: map[string][]model.Trade{
			"0xa": {
				{Asset: "t1", Side: model.TradeBuy, Price: 0.5, Size: 100, Timestamp: now.Add(-24 * time.Hour)},
				{Asset: "t1", Side: model.TradeBuy, Price: 0.5, Size: 100, Timestamp: opened},
			},
		},
		History: map[string][]model.PricePoint{
			"t1": {{Time: now.Add(-time.Hour), Price: 0.5}, {Time: now.Add(-2 * time.Hour), Price: 0.7}},
		},
		Markets: map[string]model.Market{"c1": {ConditionID: "c1", Tags: []string{"Election"}}},
		Fail:    map[string]bool{"0xc": true},
	}
	c := NewCollector(mock, nil, nil, DefaultOptions())
	c.now = func() time.Time { return now }

	got, err := c.Collect(context.Background(), []string{"0xA", "0xB", "0xC"}, map[string]string{"0xA": "alpha"})
	require.NoError(t, err)

	assert.Equal(t, []string{"0xc"}, got.Failed)
	snap := got.Snapshot
	require.Len(t, snap.Positions, 2)
	require.NotNil(t, snap.Positions[0].OpenedAt)
	assert.True(t, snap.Positions[0].OpenedAt.Equal(opened))
	assert.Nil(t, snap.Positions[1].OpenedAt, "wallet without activity has no opened_at")

	assert.Equal(t, model.CategoryPolitics, snap.Categories["c1"])
	assert.InDelta(t, 0.6, snap.WeeklyAverages["t1"], 1e-9)
	assert.Equal(t, "alpha", snap.Names["0xa"])
	assert.Equal(t, now, snap.TakenAt)

	require.Contains(t, snap.Profiles, "0xa")
	require.Contains(t, snap.Profiles, "0xb")
	assert.Equal(t, model.TierUnrated, snap.Profiles["0xb"].Tier)
	assert.Len(t, got.Rescored, 2)

	// Second cycle is served from cache.
	again, err := c.Collect(context.Background(), []string{"0xA", "0xB"}, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Rescored)
	assert.Equal(t, 1, mock.Calls("markets"))
	assert.Equal(t, 1, mock.Calls("prices-history"))
}

func TestCollector_DegradesOnMissingData(t *testing.T) {
	mock := &MockFetcher{
		Positions: map[string][]model.RawPosition{
			"0xa": {{Wallet: "0xa", MarketID: "c9", OutcomeLabel: "Q9", TokenID: "t9", Side: model.SideNo, Size: 10, EntryPrice: 0.3, CurrentPrice: 0.3}},
		},
		Fail: map[string]bool{"t9": true, "c9": true},
	}
	c := NewCollector(mock, nil, nil, DefaultOptions())

	got, err := c.Collect(context.Background(), []string{"0xa"}, nil)
	require.NoError(t, err)
	_, hasAvg := got.Snapshot.WeeklyAverages["t9"]
	assert.False(t, hasAvg)
	_, hasCat := got.Snapshot.Categories["c9"]
	assert.False(t, hasCat)
	assert.Equal(t, 50, got.Snapshot.Profiles["0xa"].TotalScore)
}

func TestCollector_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCollector(&MockFetcher{}, nil, nil, DefaultOptions())
	_, err := c.Collect(ctx, []string{"0xa"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCollector_CollectWallet(t *testing.T) {
	mock := &MockFetcher{
		Positions: map[string][]model.RawPosition{
			"0xu": {
				{Wallet: "0xu", MarketID: "c1", OutcomeLabel: "Q", Side: model.SideYes, Size: 100, EntryPrice: 0.4, CurrentPrice: 0.5},
				{Wallet: "0xu", MarketID: "c1", OutcomeLabel: "Q", Side: model.SideNo, Size: 30, EntryPrice: 0.6, CurrentPrice: 0.5},
			},
		},
		Fail: map[string]bool{"0xbad": true},
	}
	c := NewCollector(mock, nil, nil, DefaultOptions())

	got, err := c.CollectWallet(context.Background(), "0xU")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 70.0, got[0].NetSize)

	_, err = c.CollectWallet(context.Background(), "0xbad")
	var werr *WalletError
	assert.True(t, errors.As(err, &werr))
}
