package model

import "fmt"

// MinTier values accepted by the min_whale_tier filter.
const (
	MinTierAll   = "ALL"
	MinTierPro   = "PRO"
	MinTierElite = "ELITE"
)

// Settings are the tunable engine parameters. A copy is taken at the start of
// each evaluation cycle, so a cycle never observes a partial update.
type Settings struct {
	KellyMultiplier   float64 `yaml:"kelly_multiplier" json:"kelly_multiplier"`
	MaxRiskCap        float64 `yaml:"max_risk_cap" json:"max_risk_cap"`
	MinWallets        int     `yaml:"min_wallets" json:"min_wallets"`
	HideLottery       bool    `yaml:"hide_lottery" json:"hide_lottery"`
	LongshotTolerance float64 `yaml:"longshot_tolerance" json:"longshot_tolerance"`
	TrendMode         bool    `yaml:"trend_mode" json:"trend_mode"`
	YieldTriggerPrice float64 `yaml:"yield_trigger_price" json:"yield_trigger_price"`
	YieldFixedPct     float64 `yaml:"yield_fixed_pct" json:"yield_fixed_pct"`
	YieldMinWhales    int     `yaml:"yield_min_whales" json:"yield_min_whales"`
	MinWhaleTier      string  `yaml:"min_whale_tier" json:"min_whale_tier"`
	IgnoreBagholders  bool    `yaml:"ignore_bagholders" json:"ignore_bagholders"`
	ConsensusBoost    bool    `yaml:"consensus_boost" json:"consensus_boost"`
	DefaultBalance    float64 `yaml:"default_balance" json:"default_balance"`
}

// DefaultSettings returns the documented fallback values.
func DefaultSettings() Settings {
	return Settings{
		KellyMultiplier:   0.25,
		MaxRiskCap:        0.05,
		MinWallets:        2,
		HideLottery:       false,
		LongshotTolerance: 1.0,
		TrendMode:         true,
		YieldTriggerPrice: 0.85,
		YieldFixedPct:     0.10,
		YieldMinWhales:    3,
		MinWhaleTier:      MinTierAll,
		IgnoreBagholders:  true,
		ConsensusBoost:    true,
		DefaultBalance:    1000,
	}
}

// MinTierRank converts MinWhaleTier into a Tier rank threshold.
func (s Settings) MinTierRank() int {
	switch s.MinWhaleTier {
	case MinTierElite:
		return TierElite.Rank()
	case MinTierPro:
		return TierPro.Rank()
	default:
		return 0
	}
}

// Validate checks every parameter against its allowed range.
func (s Settings) Validate() error {
	if s.KellyMultiplier < 0.1 || s.KellyMultiplier > 1.0 {
		return fmt.Errorf("kelly_multiplier must be in [0.1, 1.0], got %v", s.KellyMultiplier)
	}
	if s.MaxRiskCap < 0.01 || s.MaxRiskCap > 0.20 {
		return fmt.Errorf("max_risk_cap must be in [0.01, 0.20], got %v", s.MaxRiskCap)
	}
	if s.MinWallets < 1 {
		return fmt.Errorf("min_wallets must be at least 1, got %d", s.MinWallets)
	}
	if s.LongshotTolerance < 0.5 || s.LongshotTolerance > 1.5 {
		return fmt.Errorf("longshot_tolerance must be in [0.5, 1.5], got %v", s.LongshotTolerance)
	}
	if s.YieldTriggerPrice <= 0.5 || s.YieldTriggerPrice >= 1.0 {
		return fmt.Errorf("yield_trigger_price must be in (0.5, 1.0), got %v", s.YieldTriggerPrice)
	}
	if s.YieldFixedPct <= 0 || s.YieldFixedPct > 0.20 {
		return fmt.Errorf("yield_fixed_pct must be in (0, 0.20], got %v", s.YieldFixedPct)
	}
	if s.YieldMinWhales < 1 {
		return fmt.Errorf("yield_min_whales must be at least 1, got %d", s.YieldMinWhales)
	}
	switch s.MinWhaleTier {
	case MinTierAll, MinTierPro, MinTierElite:
	default:
		return fmt.Errorf("min_whale_tier must be ALL, PRO or ELITE, got %q", s.MinWhaleTier)
	}
	if s.DefaultBalance < 0 {
		return fmt.Errorf("default_balance must not be negative")
	}
	return nil
}
