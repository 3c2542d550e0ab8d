package consensus

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/risk"
	"WhaleConsensus/internal/strategy"
)

// Snapshot is everything one evaluation cycle collected from upstream.
// ComputeSignals over the same snapshot and settings always yields the same
// result, so callers may re-run it with different settings.
type Snapshot struct {
	Positions []model.RawPosition `json:"-"`
	// Categories by market id.
	Categories map[string]model.Category `json:"-"`
	// Profiles by normalized wallet.
	Profiles map[string]model.WhaleProfile `json:"-"`
	// WeeklyAverages by token id. Missing tokens score zero momentum.
	WeeklyAverages map[string]float64 `json:"-"`
	// Names by normalized wallet.
	Names   map[string]string `json:"-"`
	TakenAt time.Time         `json:"taken_at"`
}

// Profile returns the stored profile for wallet or a neutral one.
func (s Snapshot) Profile(wallet string) model.WhaleProfile {
	w := model.NormalizeWallet(wallet)
	if p, ok := s.Profiles[w]; ok {
		return p
	}
	return model.NeutralProfile(w, 0)
}

// ComputeSignals nets, aggregates, scores, sizes and ranks. Visibility
// filters are not applied; see Filters. Sizing failures are attached to the
// affected signal and never abort the batch.
func ComputeSignals(snap Snapshot, s model.Settings, bankroll decimal.Decimal) []model.Signal {
	netted := NetPositions(snap.Positions)
	if s.IgnoreBagholders {
		kept := netted[:0:0]
		for _, p := range netted {
			if !snap.Profile(p.Wallet).IsBagholder() {
				kept = append(kept, p)
			}
		}
		netted = kept
	}

	aggs := Aggregate(netted, snap.Categories)
	out := make([]model.Signal, 0, len(aggs))
	for _, agg := range aggs {
		sig := model.Signal{AggregatedSignal: agg}
		sig.Consensus = buildConsensus(agg.Wallets, snap)
		sig.Alpha = strategy.Evaluate(strategy.Input{
			Signal:        agg,
			WeeklyAverage: snap.WeeklyAverages[agg.TokenID],
			Settings:      s,
		}, snap.TakenAt)

		scores := make([]int, 0, len(sig.Consensus.Contributors))
		for _, c := range sig.Consensus.Contributors {
			scores = append(scores, c.Score)
		}
		res, err := risk.Size(risk.Input{
			Price:       agg.CurrentPrice,
			AlphaScore:  sig.Alpha.Total,
			WalletCount: agg.WalletCount,
			WhaleScores: scores,
			Bankroll:    bankroll,
		}, s)
		if err != nil {
			sig.SizingError = err.Error()
		} else {
			sig.Sizing = res
		}
		out = append(out, sig)
	}

	Rank(out)
	return out
}

func buildConsensus(wallets []string, snap Snapshot) model.Consensus {
	c := model.Consensus{
		Count:         len(wallets),
		WeightedScore: 50,
		Contributors:  make([]model.Contributor, 0, len(wallets)),
	}
	sum := 0
	for _, w := range wallets {
		p := snap.Profile(w)
		c.Contributors = append(c.Contributors, model.Contributor{
			Address: w,
			Name:    snap.Names[w],
			Score:   p.TotalScore,
			Tier:    p.Tier,
		})
		sum += p.TotalScore
		if p.Tier == model.TierElite {
			c.HasElite = true
		}
	}
	if len(wallets) > 0 {
		c.WeightedScore = sum / len(wallets)
	}
	sort.SliceStable(c.Contributors, func(i, j int) bool {
		return c.Contributors[i].Score > c.Contributors[j].Score
	})
	return c
}
