package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"WhaleConsensus/internal/metrics"
	"WhaleConsensus/internal/model"
)

const (
	pricePrefix  = "price:"
	marketPrefix = "market:"
	whalePrefix  = "whale:"
)

// TTLs per kind of entry. Zero means no expiry.
type TTLs struct {
	Price  time.Duration
	Market time.Duration
	Whale  time.Duration
}

// DefaultTTLs returns the standard expiry for each kind.
func DefaultTTLs() TTLs {
	return TTLs{
		Price:  5 * time.Minute,
		Market: 24 * time.Hour,
		Whale:  time.Hour,
	}
}

// Store is a typed view over a Backend. Backend failures are logged and
// treated as misses.
type Store struct {
	backend Backend
	ttl     TTLs
}

// NewStore wraps b. A nil backend gets an in-memory one.
func NewStore(b Backend, ttl TTLs) *Store {
	if b == nil {
		b = NewMemory()
	}
	return &Store{backend: b, ttl: ttl}
}

// PriceAverage returns the cached lookback average for a token.
func (s *Store) PriceAverage(ctx context.Context, token string) (float64, bool) {
	raw, ok := s.get(ctx, "price", pricePrefix+token)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *Store) SetPriceAverage(ctx context.Context, token string, avg float64) {
	s.set(ctx, pricePrefix+token, []byte(strconv.FormatFloat(avg, 'g', -1, 64)), s.ttl.Price)
}

// Category returns the cached classification for a market.
func (s *Store) Category(ctx context.Context, marketID string) (model.Category, bool) {
	raw, ok := s.get(ctx, "market", marketPrefix+marketID)
	if !ok {
		return "", false
	}
	return model.Category(raw), true
}

func (s *Store) SetCategory(ctx context.Context, marketID string, c model.Category) {
	s.set(ctx, marketPrefix+marketID, []byte(c), s.ttl.Market)
}

// WhaleProfile returns the cached score for a wallet.
func (s *Store) WhaleProfile(ctx context.Context, wallet string) (model.WhaleProfile, bool) {
	var p model.WhaleProfile
	raw, ok := s.get(ctx, "whale", whalePrefix+model.NormalizeWallet(wallet))
	if !ok {
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Str("wallet", wallet).Msg("discarding undecodable cached whale profile")
		return p, false
	}
	return p, true
}

func (s *Store) SetWhaleProfile(ctx context.Context, p model.WhaleProfile) {
	raw, err := json.Marshal(p)
	if err != nil {
		log.Warn().Err(err).Str("wallet", p.Wallet).Msg("encode whale profile")
		return
	}
	s.set(ctx, whalePrefix+model.NormalizeWallet(p.Wallet), raw, s.ttl.Whale)
}

// InvalidateWhales drops every cached whale profile so the next cycle
// rescores all wallets.
func (s *Store) InvalidateWhales(ctx context.Context) error {
	return s.backend.DeletePrefix(ctx, whalePrefix)
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) get(ctx context.Context, kind, key string) ([]byte, bool) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		ok = false
	}
	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(kind, result).Inc()
	return raw, ok
}

func (s *Store) set(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
