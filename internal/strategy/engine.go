package strategy

import (
	"time"

	"WhaleConsensus/internal/model"
)

// BaseScore is the neutral starting point of every alpha score.
const BaseScore = 50

// LotteryThreshold is the alpha total below which hide_lottery drops a signal.
const LotteryThreshold = 30

// Input is everything the alpha model reads for one signal.
type Input struct {
	Signal model.AggregatedSignal
	// WeeklyAverage is the mean price over the lookback window; 0 when the
	// price history is unavailable.
	WeeklyAverage float64
	Settings      model.Settings
}

// Evaluate computes the alpha breakdown for a signal at time now.
func Evaluate(in Input, now time.Time) model.AlphaBreakdown {
	sig := in.Signal

	factors := []model.FactorScore{
		scoreFLB(sig.CurrentPrice, in.Settings.LongshotTolerance),
		scoreMomentum(sig.CurrentPrice, in.WeeklyAverage, in.Settings.TrendMode),
		scoreSmartShort(sig.Direction, sig.Category),
		scoreFreshness(sig.EarliestEntry, now),
	}

	b := model.AlphaBreakdown{
		Base:       BaseScore,
		FLB:        factors[0].Score,
		Momentum:   factors[1].Score,
		SmartShort: factors[2].Score,
		Freshness:  factors[3].Score,
		Details:    []string{"Base: 50"},
	}
	for _, f := range factors {
		if f.Commentary != "" {
			b.Details = append(b.Details, f.Commentary)
		}
	}
	b.Total = clamp(b.Base+b.FLB+b.Momentum+b.SmartShort+b.Freshness, 0, 100)
	return b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
