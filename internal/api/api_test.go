package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhaleConsensus/internal/collector"
	"WhaleConsensus/internal/consensus"
	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/scheduler"
	"WhaleConsensus/internal/watchlist"
)

const (
	walletA = "0x7523cafcee7bcf2db9a79d80e0d79b88a9a54c4c"
	walletB = "0x4d97dcd97ec945f40cf65f87097ace5ea0476045"
	walletC = "0x2222222222222222222222222222222222222222"
	walletU = "0x1111111111111111111111111111111111111111"
)

type fakeEngine struct {
	mu        sync.Mutex
	latest    *scheduler.Result
	triggers  int
	refreshes int
	profiles  []model.WhaleProfile
}

func (f *fakeEngine) Latest() *scheduler.Result { return f.latest }

func (f *fakeEngine) Trigger() {
	f.mu.Lock()
	f.triggers++
	f.mu.Unlock()
}

func (f *fakeEngine) RefreshWhales(context.Context) error {
	f.refreshes++
	return nil
}

func (f *fakeEngine) WhaleProfiles(context.Context) ([]model.WhaleProfile, error) {
	return f.profiles, nil
}

type fakeWallets struct {
	positions []model.NettedPosition
	err       error
}

func (f *fakeWallets) CollectWallet(context.Context, string) ([]model.NettedPosition, error) {
	return f.positions, f.err
}

type fakeBalances struct{}

func (fakeBalances) USDCBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.RequireFromString("250.5"), nil
}

func raw(wallet, market string, side model.Side, size, entry, cur float64) model.RawPosition {
	return model.RawPosition{
		Wallet:       wallet,
		MarketID:     market,
		MarketName:   "Market " + market,
		OutcomeLabel: "Yes",
		TokenID:      "tok-" + market,
		Side:         side,
		Size:         size,
		EntryPrice:   entry,
		CurrentPrice: cur,
	}
}

func testResult() *scheduler.Result {
	snap := consensus.Snapshot{
		Positions: []model.RawPosition{
			raw(walletA, "m1", model.SideYes, 1000, 0.40, 0.50),
			raw(walletB, "m1", model.SideYes, 1000, 0.40, 0.50),
			raw(walletC, "m1", model.SideYes, 400, 0.45, 0.50),
			raw(walletA, "m2", model.SideNo, 500, 0.30, 0.35),
		},
		Profiles: map[string]model.WhaleProfile{
			walletA: {Wallet: walletA, TotalScore: 85, Tier: model.TierElite},
			walletB: {Wallet: walletB, TotalScore: 65, Tier: model.TierPro},
		},
		TakenAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	settings := model.DefaultSettings()
	bankroll := decimal.NewFromInt(1000)
	return &scheduler.Result{
		ID:       "cycle-1",
		Seq:      1,
		Settings: settings,
		Bankroll: bankroll,
		Snapshot: snap,
		Signals:  consensus.ComputeSignals(snap, settings, bankroll),
	}
}

type env struct {
	srv     *httptest.Server
	engine  *fakeEngine
	wallets *fakeWallets
	wl      *watchlist.Manager
	server  *Server
}

func newEnv(t *testing.T, withResult bool) *env {
	t.Helper()
	wl, err := watchlist.NewManager(filepath.Join(t.TempDir(), "watchlist.json"), model.DefaultSettings(), []string{walletA, walletB})
	require.NoError(t, err)
	e := &env{engine: &fakeEngine{}, wallets: &fakeWallets{}, wl: wl}
	if withResult {
		e.engine.latest = testResult()
	}
	e.server = NewServer(e.engine, wl, e.wallets, nil, NewHub())
	e.srv = httptest.NewServer(e.server.Router())
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

type signalsBody struct {
	Count   int `json:"count"`
	Signals []struct {
		GroupKey    string `json:"group_key"`
		WalletCount int    `json:"wallet_count"`
		Sizing      *struct {
			Strategy        string          `json:"strategy"`
			RecommendedSize decimal.Decimal `json:"recommended_size"`
		} `json:"sizing"`
	} `json:"signals"`
}

func (e *env) signals(t *testing.T, query string) (int, signalsBody) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + "/api/v1/signals" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out signalsBody
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	e := newEnv(t, true)
	resp, body := e.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["tracked_wallets"])
	assert.Equal(t, "cycle-1", body["cycle_id"])
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, true)
	resp, _ := e.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mresp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	raw, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
	assert.Contains(t, string(raw), `whale_consensus_http_requests_total{method="GET",path="/api/v1/health",status="200"}`)
}

func TestSignals_NoCycleYet(t *testing.T) {
	e := newEnv(t, false)
	status, body := e.signals(t, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Signals)
}

func TestSignals_FiltersAndOverrides(t *testing.T) {
	e := newEnv(t, true)

	status, body := e.signals(t, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, body.Count, "min_wallets 2 hides the single-wallet signal")
	assert.Equal(t, 3, body.Signals[0].WalletCount)
	require.NotNil(t, body.Signals[0].Sizing)
	assert.Equal(t, model.StrategyKelly, body.Signals[0].Sizing.Strategy)
	base := body.Signals[0].Sizing.RecommendedSize

	_, body = e.signals(t, "?min_wallets=1")
	assert.Equal(t, 2, body.Count)

	_, body = e.signals(t, "?min_whale_tier=ELITE&min_wallets=1")
	assert.Equal(t, 2, body.Count, "both signals include the elite wallet")

	_, body = e.signals(t, "?balance=2000")
	require.Equal(t, 1, body.Count)
	require.NotNil(t, body.Signals[0].Sizing)
	assert.True(t, base.IsPositive())
	assert.True(t, body.Signals[0].Sizing.RecommendedSize.GreaterThan(base), "larger bankroll sizes up")
}

func TestSignals_BadParameters(t *testing.T) {
	e := newEnv(t, true)
	for _, q := range []string{
		"?kelly_multiplier=abc",
		"?kelly_multiplier=5",
		"?min_whale_tier=GOD",
		"?balance=-1",
		"?hide_lottery=maybe",
	} {
		status, _ := e.signals(t, q)
		assert.Equal(t, http.StatusBadRequest, status, q)
	}
}

func TestNeedsRecompute(t *testing.T) {
	a := model.DefaultSettings()
	b := a
	b.MinWallets = 5
	b.HideLottery = true
	b.MinWhaleTier = model.MinTierElite
	assert.False(t, needsRecompute(a, b))
	b.KellyMultiplier = 0.5
	assert.True(t, needsRecompute(a, b))
}

func TestWallets_CRUD(t *testing.T) {
	e := newEnv(t, true)

	resp, body := e.do(t, http.MethodGet, "/api/v1/config/wallets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])

	resp, _ = e.do(t, http.MethodPost, "/api/v1/config/wallets", `{"action":"add","address":"`+walletU+`","name":"me"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, e.wl.Addresses(), 3)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/config/wallets", `{"address":"`+walletU+`"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/config/wallets", `{"address":"0x123"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/config/wallets", `{"action":"swap","address":"`+walletU+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodPut, "/api/v1/config/wallets/"+walletU+"/name", `{"name":"mine"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mine", body["name"])
	assert.Equal(t, "mine", e.wl.Names()[walletU])

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/config/wallets/"+walletU, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.do(t, http.MethodDelete, "/api/v1/config/wallets/"+walletU, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 2, e.engine.triggers, "add and remove each trigger a cycle")
}

func TestSettings_GetPut(t *testing.T) {
	e := newEnv(t, true)

	resp, body := e.do(t, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.25, body["kelly_multiplier"])

	resp, _ = e.do(t, http.MethodPut, "/api/v1/settings", `{"kelly_multiplier":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0.25, e.wl.Settings().KellyMultiplier)

	resp, _ = e.do(t, http.MethodPut, "/api/v1/settings", `{"connected_wallet":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodPut, "/api/v1/settings", `{"kelly_multiplier":0.5,"min_whale_tier":"PRO","connected_wallet":"`+walletU+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.5, body["kelly_multiplier"])
	assert.Equal(t, "PRO", body["min_whale_tier"])
	assert.Equal(t, walletU, body["connected_wallet"])
	assert.Equal(t, 0.05, e.wl.Settings().MaxRiskCap, "untouched fields keep their value")
	assert.Equal(t, 1, e.engine.triggers)
}

func TestPortfolio(t *testing.T) {
	e := newEnv(t, true)

	resp, _ := e.do(t, http.MethodGet, "/api/v1/user/portfolio", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "no wallet and none connected")

	e.wallets.positions = []model.NettedPosition{{
		Wallet: walletU, MarketID: "m1", OutcomeLabel: "Yes", Side: model.SideYes,
		NetSize: 100, EntryPrice: 0.4, CurrentPrice: 0.5,
	}}
	resp, body := e.do(t, http.MethodGet, "/api/v1/user/portfolio?wallet="+walletU, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["validated_count"])
	positions := body["positions"].([]any)
	require.Len(t, positions, 1)
	assert.Equal(t, "VALIDATED", positions[0].(map[string]any)["status"])

	e.wallets.err = &collector.WalletError{Wallet: walletU}
	resp, _ = e.do(t, http.MethodGet, "/api/v1/user/portfolio?wallet="+walletU, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	e.wallets.err = errors.New("boom")
	resp, _ = e.do(t, http.MethodGet, "/api/v1/user/portfolio?wallet="+walletU, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestBalance(t *testing.T) {
	e := newEnv(t, true)
	resp, _ := e.do(t, http.MethodGet, "/api/v1/user/balance?wallet="+walletU, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	e.server.Balances = fakeBalances{}
	resp, body := e.do(t, http.MethodGet, "/api/v1/user/balance?wallet="+walletU, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "250.5", body["usdc_balance"])
	assert.Equal(t, "Polygon", body["chain"])
}

func TestWhaleScores(t *testing.T) {
	e := newEnv(t, true)
	require.NoError(t, e.wl.Rename(walletA, "alpha"))
	e.engine.profiles = []model.WhaleProfile{{Wallet: walletA, TotalScore: 85, Tier: model.TierElite}}

	resp, err := http.Get(e.srv.URL + "/api/v1/whale-scores")
	require.NoError(t, err)
	defer resp.Body.Close()
	var scores []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scores))
	require.Len(t, scores, 1)
	assert.Equal(t, "alpha", scores[0]["name"])
	assert.Equal(t, float64(85), scores[0]["total_score"])

	resp2, _ := e.do(t, http.MethodPost, "/api/v1/whale-scores/refresh", "")
	assert.Equal(t, http.StatusAccepted, resp2.StatusCode)
	assert.Equal(t, 1, e.engine.refreshes)
}

func TestWebSocketStream(t *testing.T) {
	e := newEnv(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.server.Hub.Run(ctx)

	e.server.Hub.Broadcast([]byte(`{"cycle_id":"cycle-1"}`))

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"cycle_id":"cycle-1"}`, string(msg))
}
