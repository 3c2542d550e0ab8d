package model

import "github.com/shopspring/decimal"

// SizingResult is the closed set of risk engine outcomes: *KellyResult,
// *YieldResult or *NoBet. Switch on the concrete type to handle each case.
type SizingResult interface {
	Strategy() string
	Size() decimal.Decimal
	sealed()
}

const (
	StrategyKelly = "KELLY_SPECULATION"
	StrategyYield = "YIELD_MODE"
	StrategyNoBet = "NO_BET"
)

// KellyResult is a de-biased fractional Kelly stake.
type KellyResult struct {
	MarketPrice     float64         `json:"market_price"`
	NetOdds         float64         `json:"net_odds"`
	CalibratedProb  float64         `json:"p_calibrated"`
	RealProb        float64         `json:"real_prob"`
	Adjustments     []string        `json:"adjustments"`
	ProbBoosts      []string        `json:"prob_boosts"`
	KellyRaw        float64         `json:"kelly_raw"`
	Dampener        float64         `json:"dampener"`
	DampenerDetail  string          `json:"dampener_detail"`
	KellyMultiplier float64         `json:"kelly_multiplier"`
	StakePct        float64         `json:"stake_percent"`
	CappedPct       float64         `json:"capped_percent"`
	MaxRiskCap      float64         `json:"max_risk_cap"`
	RecommendedSize decimal.Decimal `json:"recommended_size"`
}

func (*KellyResult) Strategy() string        { return StrategyKelly }
func (r *KellyResult) Size() decimal.Decimal { return r.RecommendedSize }
func (*KellyResult) sealed()                 {}

// YieldResult is the fixed-fraction allocation used near certainty.
type YieldResult struct {
	MarketPrice     float64         `json:"market_price"`
	TriggerPrice    float64         `json:"yield_trigger"`
	FixedPct        float64         `json:"fixed_pct"`
	Reason          string          `json:"reason"`
	RecommendedSize decimal.Decimal `json:"recommended_size"`
}

func (*YieldResult) Strategy() string        { return StrategyYield }
func (r *YieldResult) Size() decimal.Decimal { return r.RecommendedSize }
func (*YieldResult) sealed()                 {}

// NoBet means the calibrated edge is not positive.
type NoBet struct {
	Reason         string   `json:"reason"`
	MarketPrice    float64  `json:"market_price"`
	CalibratedProb float64  `json:"p_calibrated"`
	RealProb       float64  `json:"real_prob"`
	NetOdds        float64  `json:"net_odds"`
	KellyRaw       float64  `json:"kelly_raw"`
	Adjustments    []string `json:"adjustments"`
	ProbBoosts     []string `json:"prob_boosts"`
}

func (*NoBet) Strategy() string      { return StrategyNoBet }
func (*NoBet) Size() decimal.Decimal { return decimal.Zero }
func (*NoBet) sealed()               {}
