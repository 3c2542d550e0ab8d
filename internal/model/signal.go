package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AggregatedSignal is the cross-wallet consensus on one market outcome and
// direction. It is rebuilt from scratch every evaluation cycle.
type AggregatedSignal struct {
	GroupKey        string     `json:"group_key"`
	MarketID        string     `json:"market_id"`
	MarketName      string     `json:"market_name"`
	MarketSlug      string     `json:"market_slug,omitempty"`
	OutcomeLabel    string     `json:"outcome_label"`
	Direction       Side       `json:"direction"`
	Category        Category   `json:"category"`
	TokenID         string     `json:"token_id,omitempty"`
	WalletCount     int        `json:"wallet_count"`
	TotalConviction float64    `json:"total_conviction"`
	AvgEntryPrice   float64    `json:"avg_entry_price"`
	CurrentPrice    float64    `json:"current_price"`
	EarliestEntry   *time.Time `json:"earliest_entry,omitempty"`
	Wallets         []string   `json:"wallets"`
}

// FactorScore is one named component of a composite score.
type FactorScore struct {
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	Weight     float64 `json:"weight,omitempty"`
	Weighted   float64 `json:"weighted,omitempty"`
	Commentary string  `json:"commentary"`
}

// AlphaBreakdown is the signal quality score and its additive parts.
type AlphaBreakdown struct {
	Base       int      `json:"base"`
	FLB        int      `json:"flb"`
	Momentum   int      `json:"momentum"`
	SmartShort int      `json:"smart_short"`
	Freshness  int      `json:"freshness"`
	Total      int      `json:"total"`
	Details    []string `json:"details"`
}

// Contributor is one wallet participating in a signal.
type Contributor struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Score   int    `json:"score"`
	Tier    Tier   `json:"tier"`
}

// Consensus summarizes participant quality for a signal.
type Consensus struct {
	Count         int           `json:"count"`
	HasElite      bool          `json:"has_elite"`
	WeightedScore int           `json:"weighted_score"`
	Contributors  []Contributor `json:"contributors"`
}

// Signal is a fully scored and sized aggregated signal.
type Signal struct {
	AggregatedSignal
	Alpha       AlphaBreakdown `json:"alpha"`
	Consensus   Consensus      `json:"consensus"`
	Sizing      SizingResult   `json:"-"`
	SizingError string         `json:"sizing_error,omitempty"`
}

// AlphaScore is the clamped alpha total.
func (s Signal) AlphaScore() int { return s.Alpha.Total }

// RecommendedSize is the stake in USDC, zero for NoBet or failed sizing.
func (s Signal) RecommendedSize() decimal.Decimal {
	if s.Sizing == nil {
		return decimal.Zero
	}
	return s.Sizing.Size()
}

type sizingEnvelope struct {
	Strategy        string          `json:"strategy"`
	RecommendedSize decimal.Decimal `json:"recommended_size"`
	Detail          SizingResult    `json:"detail,omitempty"`
}

// MarshalJSON flattens the sizing variant into a tagged envelope.
func (s Signal) MarshalJSON() ([]byte, error) {
	type plain Signal
	out := struct {
		plain
		AlphaScore int             `json:"alpha_score"`
		Sizing     *sizingEnvelope `json:"sizing,omitempty"`
	}{plain: plain(s), AlphaScore: s.Alpha.Total}
	if s.Sizing != nil {
		out.Sizing = &sizingEnvelope{
			Strategy:        s.Sizing.Strategy(),
			RecommendedSize: s.Sizing.Size(),
			Detail:          s.Sizing,
		}
	}
	return json.Marshal(out)
}
