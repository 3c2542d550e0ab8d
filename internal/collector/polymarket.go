package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"WhaleConsensus/internal/metrics"
	"WhaleConsensus/internal/model"
)

const (
	defaultDataURL  = "https://data-api.polymarket.com"
	defaultClobURL  = "https://clob.polymarket.com"
	defaultGammaURL = "https://gamma-api.polymarket.com"

	maxAttempts = 5
	maxBackoff  = 30 * time.Second
)

// PolymarketConfig controls the upstream endpoints and client limits.
type PolymarketConfig struct {
	DataURL  string
	ClobURL  string
	GammaURL string
	Proxy    string
	Timeout  time.Duration
	// RatePerSecond caps outgoing requests; Burst allows short spikes.
	RatePerSecond float64
	Burst         int
}

// PolymarketFetcher implements Fetcher against the public Polymarket APIs.
type PolymarketFetcher struct {
	dataURL  string
	clobURL  string
	gammaURL string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	backoff  func(attempt int) time.Duration
}

// NewPolymarketFetcher creates a fetcher with optional proxy support.
func NewPolymarketFetcher(cfg PolymarketConfig) *PolymarketFetcher {
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}

	st := gobreaker.Settings{Name: "polymarket"}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.IsSuccessful = breakerSuccess

	return &PolymarketFetcher{
		dataURL:  orDefault(cfg.DataURL, defaultDataURL),
		clobURL:  orDefault(cfg.ClobURL, defaultClobURL),
		gammaURL: orDefault(cfg.GammaURL, defaultGammaURL),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		backoff: exponentialBackoff,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}

func (f *PolymarketFetcher) Name() string { return "polymarket" }

type apiPosition struct {
	ConditionID string  `json:"conditionId"`
	Outcome     string  `json:"outcome"`
	Size        float64 `json:"size"`
	AvgPrice    float64 `json:"avgPrice"`
	CurPrice    float64 `json:"curPrice"`
	Title       string  `json:"title"`
	Slug        string  `json:"slug"`
	Asset       string  `json:"asset"`
}

func (f *PolymarketFetcher) FetchPositions(ctx context.Context, wallet string) ([]model.RawPosition, error) {
	q := url.Values{}
	q.Set("user", wallet)
	var raw []apiPosition
	if err := f.get(ctx, "positions", f.dataURL+"/positions?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("fetch positions for %s: %w", wallet, err)
	}
	out := make([]model.RawPosition, 0, len(raw))
	for _, p := range raw {
		if p.ConditionID == "" || p.Size <= 0 {
			continue
		}
		out = append(out, model.RawPosition{
			Wallet:       model.NormalizeWallet(wallet),
			MarketID:     p.ConditionID,
			MarketName:   p.Title,
			MarketSlug:   p.Slug,
			OutcomeLabel: p.Title,
			TokenID:      p.Asset,
			Side:         model.ParseSide(p.Outcome),
			Size:         p.Size,
			EntryPrice:   p.AvgPrice,
			CurrentPrice: p.CurPrice,
		})
	}
	return out, nil
}

type apiActivity struct {
	Asset       string  `json:"asset"`
	ConditionID string  `json:"conditionId"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Timestamp   int64   `json:"timestamp"`
	Slug        string  `json:"slug"`
}

func (f *PolymarketFetcher) FetchActivity(ctx context.Context, wallet string, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 500
	}
	q := url.Values{}
	q.Set("user", wallet)
	q.Set("limit", strconv.Itoa(limit))
	var raw []apiActivity
	if err := f.get(ctx, "activity", f.dataURL+"/activity?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("fetch activity for %s: %w", wallet, err)
	}
	out := make([]model.Trade, 0, len(raw))
	for _, a := range raw {
		side := model.TradeSide(strings.ToUpper(a.Side))
		if side != model.TradeBuy && side != model.TradeSell {
			continue
		}
		out = append(out, model.Trade{
			Asset:       a.Asset,
			ConditionID: a.ConditionID,
			Side:        side,
			Price:       a.Price,
			Size:        a.Size,
			Timestamp:   time.Unix(a.Timestamp, 0).UTC(),
			Slug:        a.Slug,
		})
	}
	return out, nil
}

func (f *PolymarketFetcher) FetchPriceHistory(ctx context.Context, tokenID string, lookback time.Duration) ([]model.PricePoint, error) {
	q := url.Values{}
	q.Set("market", tokenID)
	q.Set("interval", historyInterval(lookback))
	q.Set("fidelity", "60")
	var raw struct {
		History []struct {
			T int64   `json:"t"`
			P float64 `json:"p"`
		} `json:"history"`
	}
	if err := f.get(ctx, "prices-history", f.clobURL+"/prices-history?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("fetch price history for %s: %w", tokenID, err)
	}
	out := make([]model.PricePoint, len(raw.History))
	for i, h := range raw.History {
		out[i] = model.PricePoint{Time: time.Unix(h.T, 0).UTC(), Price: h.P}
	}
	return out, nil
}

func historyInterval(lookback time.Duration) string {
	switch {
	case lookback <= 24*time.Hour:
		return "1d"
	case lookback <= 7*24*time.Hour:
		return "1w"
	default:
		return "1m"
	}
}

// gammaTags accepts tags as plain strings or as {label, slug} objects.
type gammaTags []string

func (t *gammaTags) UnmarshalJSON(b []byte) error {
	var plain []string
	if err := json.Unmarshal(b, &plain); err == nil {
		*t = plain
		return nil
	}
	var objs []struct {
		Label string `json:"label"`
		Slug  string `json:"slug"`
	}
	if err := json.Unmarshal(b, &objs); err != nil {
		return err
	}
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		if o.Slug != "" {
			out = append(out, o.Slug)
		}
		if o.Label != "" && !strings.EqualFold(o.Label, o.Slug) {
			out = append(out, o.Label)
		}
	}
	*t = out
	return nil
}

func (f *PolymarketFetcher) FetchMarket(ctx context.Context, conditionID string) (model.Market, error) {
	q := url.Values{}
	q.Set("condition_ids", conditionID)
	var raw []struct {
		ConditionID string    `json:"conditionId"`
		Question    string    `json:"question"`
		Slug        string    `json:"slug"`
		Tags        gammaTags `json:"tags"`
	}
	if err := f.get(ctx, "markets", f.gammaURL+"/markets?"+q.Encode(), &raw); err != nil {
		return model.Market{}, fmt.Errorf("fetch market %s: %w", conditionID, err)
	}
	if len(raw) == 0 {
		return model.Market{}, fmt.Errorf("market %s not found", conditionID)
	}
	m := raw[0]
	return model.Market{
		ConditionID: conditionID,
		Question:    m.Question,
		Slug:        m.Slug,
		Tags:        m.Tags,
	}, nil
}

// errRateWait marks a request dropped by the local limiter before it was sent.
var errRateWait = errors.New("rate limiter wait")

// statusError is a non-2xx upstream response.
type statusError struct {
	Code   int
	Status string
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("polymarket API %s: %s", e.Status, e.Body)
}

// breakerSuccess reports whether err leaves the breaker's failure count
// untouched. Only transport errors, 429 and 5xx count as upstream failures;
// cancelled cycles and client errors do not.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errRateWait) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return !retryableStatus(se.Code)
	}
	var ue *url.Error
	return !errors.As(err, &ue)
}

// get runs one logical request through the breaker and records metrics.
func (f *PolymarketFetcher) get(ctx context.Context, endpoint, rawURL string, dst any) error {
	start := time.Now()
	_, err := f.breaker.Execute(func() (any, error) {
		return nil, f.do(ctx, rawURL, dst)
	})
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, result).Inc()
	return err
}

func (f *PolymarketFetcher) do(ctx context.Context, rawURL string, dst any) error {
	var attempt int
	for {
		attempt++
		if err := f.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", errRateWait, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", req.URL.Path, ctx.Err())
			}
			if shouldRetry(attempt, 0) {
				if err := f.sleep(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				return fmt.Errorf("decode %s: %w", req.URL.Path, err)
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if shouldRetry(attempt, resp.StatusCode) {
			if err := f.sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return &statusError{Code: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}
}

func shouldRetry(attempt, status int) bool {
	if attempt >= maxAttempts {
		return false
	}
	return status == 0 || retryableStatus(status)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func exponentialBackoff(attempt int) time.Duration {
	d := time.Duration(1<<(attempt-1)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (f *PolymarketFetcher) sleep(ctx context.Context, attempt int) error {
	d := f.backoff(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
