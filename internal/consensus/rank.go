package consensus

import (
	"sort"

	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/strategy"
)

// Rank orders signals by wallet count, then alpha score, then total
// conviction, all descending. Ties keep their input order.
func Rank(signals []model.Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if a.WalletCount != b.WalletCount {
			return a.WalletCount > b.WalletCount
		}
		if a.Alpha.Total != b.Alpha.Total {
			return a.Alpha.Total > b.Alpha.Total
		}
		return a.TotalConviction > b.TotalConviction
	})
}

// Filters are the post-hoc visibility rules applied to a ranked list.
type Filters struct {
	MinWallets  int
	HideLottery bool
	// MinTierRank is a model.Tier rank; 0 keeps everything.
	MinTierRank int
}

// FiltersFrom derives the visibility rules from engine settings.
func FiltersFrom(s model.Settings) Filters {
	return Filters{
		MinWallets:  s.MinWallets,
		HideLottery: s.HideLottery,
		MinTierRank: s.MinTierRank(),
	}
}

// Apply returns the signals passing every filter, preserving order.
func (f Filters) Apply(signals []model.Signal) []model.Signal {
	out := make([]model.Signal, 0, len(signals))
	for _, s := range signals {
		if s.WalletCount < f.MinWallets {
			continue
		}
		if f.HideLottery && s.Alpha.Total < strategy.LotteryThreshold {
			continue
		}
		if f.MinTierRank > 0 && bestTierRank(s.Consensus.Contributors) < f.MinTierRank {
			continue
		}
		out = append(out, s)
	}
	return out
}

func bestTierRank(contributors []model.Contributor) int {
	best := 0
	for _, c := range contributors {
		if r := c.Tier.Rank(); r > best {
			best = r
		}
	}
	return best
}
