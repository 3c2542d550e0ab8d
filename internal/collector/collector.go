package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"WhaleConsensus/internal/cache"
	"WhaleConsensus/internal/calculator"
	"WhaleConsensus/internal/consensus"
	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/strategy"
	"WhaleConsensus/internal/whale"
)

// Options bound the collector's upstream usage.
type Options struct {
	// Concurrency is the maximum number of outstanding upstream requests.
	Concurrency   int
	ActivityLimit int
	Lookback      time.Duration
}

// DefaultOptions returns the standard fan-out limits.
func DefaultOptions() Options {
	return Options{
		Concurrency:   10,
		ActivityLimit: 500,
		Lookback:      calculator.DefaultLookback,
	}
}

// Collection is one cycle's upstream data.
type Collection struct {
	Snapshot consensus.Snapshot
	// Rescored holds profiles computed this cycle rather than read from cache.
	Rescored []model.WhaleProfile
	// Failed lists wallets whose positions could not be fetched.
	Failed []string
}

// Collector orchestrates data fetching for an evaluation cycle.
type Collector struct {
	Fetcher Fetcher
	Cache   *cache.Store
	Scorer  *whale.Scorer
	opts    Options
	now     func() time.Time
}

// NewCollector creates a new Collector. A nil store caches in memory.
func NewCollector(fetcher Fetcher, store *cache.Store, scorer *whale.Scorer, opts Options) *Collector {
	if store == nil {
		store = cache.NewStore(nil, cache.DefaultTTLs())
	}
	if scorer == nil {
		scorer = whale.NewScorer(whale.DefaultConfig())
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.Lookback <= 0 {
		opts.Lookback = calculator.DefaultLookback
	}
	return &Collector{Fetcher: fetcher, Cache: store, Scorer: scorer, opts: opts, now: time.Now}
}

type walletData struct {
	positions []model.RawPosition
	trades    []model.Trade
	tradesOK  bool
}

// Collect gathers positions, whale profiles, categories and price averages
// for the given wallets. Per-wallet and per-token failures degrade the
// result; only cancellation returns an error.
func (c *Collector) Collect(ctx context.Context, wallets []string, names map[string]string) (*Collection, error) {
	takenAt := c.now()
	data, failed, err := c.collectWallets(ctx, wallets)
	if err != nil {
		return nil, err
	}

	var positions []model.RawPosition
	for _, w := range wallets {
		if d, ok := data[model.NormalizeWallet(w)]; ok {
			positions = append(positions, d.positions...)
		}
	}

	// Pre-aggregate to learn which wallets, markets and tokens matter.
	aggs := consensus.Aggregate(consensus.NetPositions(positions), nil)
	participants := make(map[string]struct{})
	markets := make(map[string]struct{})
	tokens := make(map[string]struct{})
	for _, a := range aggs {
		for _, w := range a.Wallets {
			participants[w] = struct{}{}
		}
		markets[a.MarketID] = struct{}{}
		if a.TokenID != "" {
			tokens[a.TokenID] = struct{}{}
		}
	}

	profiles, rescored, err := c.collectProfiles(ctx, participants, data)
	if err != nil {
		return nil, err
	}
	categories, err := c.collectCategories(ctx, markets)
	if err != nil {
		return nil, err
	}
	averages, err := c.collectAverages(ctx, tokens, takenAt)
	if err != nil {
		return nil, err
	}

	normNames := make(map[string]string, len(names))
	for w, n := range names {
		normNames[model.NormalizeWallet(w)] = n
	}

	return &Collection{
		Snapshot: consensus.Snapshot{
			Positions:      positions,
			Categories:     categories,
			Profiles:       profiles,
			WeeklyAverages: averages,
			Names:          normNames,
			TakenAt:        takenAt,
		},
		Rescored: rescored,
		Failed:   failed,
	}, nil
}

// CollectWallet fetches one wallet's netted positions, for portfolio checks.
func (c *Collector) CollectWallet(ctx context.Context, wallet string) ([]model.NettedPosition, error) {
	data, failed, err := c.collectWallets(ctx, []string{wallet})
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return nil, &WalletError{Wallet: wallet}
	}
	return consensus.NetPositions(data[model.NormalizeWallet(wallet)].positions), nil
}

// WalletError reports that a wallet's positions could not be fetched.
type WalletError struct {
	Wallet string
}

func (e *WalletError) Error() string { return "positions unavailable for " + e.Wallet }

// ScoreWallet fetches a wallet's activity and positions and scores it.
func (c *Collector) ScoreWallet(ctx context.Context, wallet string) (model.WhaleProfile, error) {
	trades, err := c.Fetcher.FetchActivity(ctx, wallet, c.opts.ActivityLimit)
	if err != nil {
		return model.WhaleProfile{}, err
	}
	positions, err := c.Fetcher.FetchPositions(ctx, wallet)
	if err != nil {
		return model.WhaleProfile{}, err
	}
	p := c.Scorer.Score(wallet, model.TradeHistory{Trades: trades, OpenPositions: len(positions)})
	c.Cache.SetWhaleProfile(ctx, p)
	return p, nil
}

func (c *Collector) collectWallets(ctx context.Context, wallets []string) (map[string]walletData, []string, error) {
	var mu sync.Mutex
	data := make(map[string]walletData, len(wallets))
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, w := range wallets {
		wallet := model.NormalizeWallet(w)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			positions, err := c.Fetcher.FetchPositions(gctx, wallet)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("wallet", wallet).Msg("positions unavailable, skipping wallet")
				mu.Lock()
				failed = append(failed, wallet)
				mu.Unlock()
				return nil
			}
			d := walletData{positions: positions}
			trades, err := c.Fetcher.FetchActivity(gctx, wallet, c.opts.ActivityLimit)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("wallet", wallet).Msg("activity unavailable, freshness and scoring degraded")
			} else {
				d.trades = trades
				d.tradesOK = true
				stampOpenedAt(d.positions, trades)
			}
			mu.Lock()
			data[wallet] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return data, failed, nil
}

// stampOpenedAt sets each position's opened_at to the earliest trade on its
// token.
func stampOpenedAt(positions []model.RawPosition, trades []model.Trade) {
	earliest := make(map[string]time.Time)
	for _, t := range trades {
		if t.Asset == "" || t.Timestamp.IsZero() {
			continue
		}
		if e, ok := earliest[t.Asset]; !ok || t.Timestamp.Before(e) {
			earliest[t.Asset] = t.Timestamp
		}
	}
	for i := range positions {
		if ts, ok := earliest[positions[i].TokenID]; ok {
			ts := ts
			positions[i].OpenedAt = &ts
		}
	}
}

func (c *Collector) collectProfiles(ctx context.Context, participants map[string]struct{}, data map[string]walletData) (map[string]model.WhaleProfile, []model.WhaleProfile, error) {
	profiles := make(map[string]model.WhaleProfile, len(participants))
	var rescored []model.WhaleProfile
	for w := range participants {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if p, ok := c.Cache.WhaleProfile(ctx, w); ok {
			profiles[w] = p
			continue
		}
		d := data[w]
		if !d.tradesOK {
			profiles[w] = model.NeutralProfile(w, 0)
			continue
		}
		p := c.Scorer.Score(w, model.TradeHistory{Trades: d.trades, OpenPositions: len(d.positions)})
		c.Cache.SetWhaleProfile(ctx, p)
		profiles[w] = p
		rescored = append(rescored, p)
	}
	return profiles, rescored, nil
}

func (c *Collector) collectCategories(ctx context.Context, markets map[string]struct{}) (map[string]model.Category, error) {
	var mu sync.Mutex
	out := make(map[string]model.Category, len(markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for id := range markets {
		if cat, ok := c.Cache.Category(ctx, id); ok {
			mu.Lock()
			out[id] = cat
			mu.Unlock()
			continue
		}
		id := id
		g.Go(func() error {
			m, err := c.Fetcher.FetchMarket(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("market", id).Msg("market metadata unavailable, using category other")
				return nil
			}
			cat := strategy.Classify(m.Tags)
			c.Cache.SetCategory(gctx, id, cat)
			mu.Lock()
			out[id] = cat
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collector) collectAverages(ctx context.Context, tokens map[string]struct{}, now time.Time) (map[string]float64, error) {
	var mu sync.Mutex
	out := make(map[string]float64, len(tokens))
	since := now.Add(-c.opts.Lookback)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for token := range tokens {
		if avg, ok := c.Cache.PriceAverage(ctx, token); ok {
			mu.Lock()
			out[token] = avg
			mu.Unlock()
			continue
		}
		token := token
		g.Go(func() error {
			points, err := c.Fetcher.FetchPriceHistory(gctx, token, c.opts.Lookback)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("token", token).Msg("price history unavailable, momentum disabled")
				return nil
			}
			avg, err := calculator.WindowAverage(points, since)
			if err != nil {
				log.Warn().Err(err).Str("token", token).Msg("no usable price samples")
				return nil
			}
			c.Cache.SetPriceAverage(gctx, token, avg)
			mu.Lock()
			out[token] = avg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
