// Package risk converts a scored signal into a recommended stake.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"WhaleConsensus/internal/model"
)

const (
	// MaxConfidence caps the probability the engine will ever assume.
	MaxConfidence = 0.85
	// AlphaBoostMin is the alpha score that earns the +5pp boost.
	AlphaBoostMin = 70
	// ConsensusBoostMinWallets is the wallet count that earns the consensus boost.
	ConsensusBoostMinWallets = 3
	boost                    = 0.05
)

// ErrInvalidPrice matches any InvalidPriceError via errors.Is.
var ErrInvalidPrice = errors.New("invalid price")

// InvalidPriceError reports a price outside the open interval (0, 1).
type InvalidPriceError struct {
	Price float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %v: must be 0 < p < 1", e.Price)
}

func (e *InvalidPriceError) Is(target error) bool { return target == ErrInvalidPrice }

// Input is the per-signal evidence the engine sizes.
type Input struct {
	Price       float64
	AlphaScore  int
	WalletCount int
	WhaleScores []int
	Bankroll    decimal.Decimal
}

// Size picks Yield Mode or de-biased Kelly and returns the stake. The only
// error is *InvalidPriceError; a non-positive edge is a NoBet result.
func Size(in Input, s model.Settings) (model.SizingResult, error) {
	if in.Price <= 0 || in.Price >= 1 || math.IsNaN(in.Price) {
		return nil, &InvalidPriceError{Price: in.Price}
	}

	if in.Price >= s.YieldTriggerPrice && in.WalletCount >= s.YieldMinWhales {
		return &model.YieldResult{
			MarketPrice:     in.Price,
			TriggerPrice:    s.YieldTriggerPrice,
			FixedPct:        s.YieldFixedPct,
			Reason:          fmt.Sprintf("Price %.2f >= Trigger %.2f with %d whales", in.Price, s.YieldTriggerPrice, in.WalletCount),
			RecommendedSize: in.Bankroll.Mul(decimal.NewFromFloat(s.YieldFixedPct)).Round(2),
		}, nil
	}

	return kelly(in, s), nil
}

func kelly(in Input, s model.Settings) model.SizingResult {
	calibrated, adjustments := Calibrate(in.Price)

	prob := calibrated
	boosts := []string{}
	if s.ConsensusBoost && in.WalletCount >= ConsensusBoostMinWallets {
		prob += boost
		boosts = append(boosts, fmt.Sprintf("+5%% Consensus (%d wallets)", in.WalletCount))
	}
	if in.AlphaScore >= AlphaBoostMin {
		prob += boost
		boosts = append(boosts, fmt.Sprintf("+5%% Alpha (%d)", in.AlphaScore))
	}
	prob = math.Min(prob, MaxConfidence)

	netOdds := (1 - in.Price) / in.Price
	q := 1 - prob
	f := (prob*netOdds - q) / netOdds

	if f <= 0 {
		return &model.NoBet{
			Reason:         "Negative EV",
			MarketPrice:    in.Price,
			CalibratedProb: calibrated,
			RealProb:       prob,
			NetOdds:        netOdds,
			KellyRaw:       f,
			Adjustments:    adjustments,
			ProbBoosts:     boosts,
		}
	}

	d, detail := Dampener(in.WhaleScores)
	stake := f * d * s.KellyMultiplier
	capped := math.Min(stake, s.MaxRiskCap)

	return &model.KellyResult{
		MarketPrice:     in.Price,
		NetOdds:         netOdds,
		CalibratedProb:  calibrated,
		RealProb:        prob,
		Adjustments:     adjustments,
		ProbBoosts:      boosts,
		KellyRaw:        f,
		Dampener:        d,
		DampenerDetail:  detail,
		KellyMultiplier: s.KellyMultiplier,
		StakePct:        stake,
		CappedPct:       capped,
		MaxRiskCap:      s.MaxRiskCap,
		RecommendedSize: in.Bankroll.Mul(decimal.NewFromFloat(capped)).Round(2),
	}
}
