package consensus

import (
	"sort"

	"WhaleConsensus/internal/model"
)

// GroupKey identifies a signal. Market ids are compared exactly; labels are
// case-folded.
func GroupKey(marketID, outcomeLabel string, side model.Side) string {
	return marketID + "_" + model.NormalizeLabel(outcomeLabel) + "_" + string(side)
}

type group struct {
	sig         model.AggregatedSignal
	wallets     map[string]struct{}
	weightedSum float64
}

// Aggregate groups netted positions across wallets by (market, outcome,
// direction). categories maps market id to category; missing entries
// classify as other. Output follows first-seen group order.
func Aggregate(positions []model.NettedPosition, categories map[string]model.Category) []model.AggregatedSignal {
	groups := make(map[string]*group)
	var order []string

	for _, p := range positions {
		key := GroupKey(p.MarketID, p.OutcomeLabel, p.Side)
		g, ok := groups[key]
		if !ok {
			cat, found := categories[p.MarketID]
			if !found || cat == "" {
				cat = model.CategoryOther
			}
			g = &group{
				sig: model.AggregatedSignal{
					GroupKey:     key,
					MarketID:     p.MarketID,
					MarketName:   p.MarketName,
					MarketSlug:   p.MarketSlug,
					OutcomeLabel: p.OutcomeLabel,
					Direction:    p.Side,
					Category:     cat,
				},
				wallets: make(map[string]struct{}),
			}
			groups[key] = g
			order = append(order, key)
		}

		conviction := p.Conviction()
		g.wallets[model.NormalizeWallet(p.Wallet)] = struct{}{}
		g.sig.TotalConviction += conviction
		g.weightedSum += p.EntryPrice * conviction
		g.sig.CurrentPrice = p.CurrentPrice
		if g.sig.TokenID == "" {
			g.sig.TokenID = p.TokenID
		}
		if g.sig.MarketName == "" {
			g.sig.MarketName = p.MarketName
		}
		if p.OpenedAt != nil && (g.sig.EarliestEntry == nil || p.OpenedAt.Before(*g.sig.EarliestEntry)) {
			ts := *p.OpenedAt
			g.sig.EarliestEntry = &ts
		}
	}

	out := make([]model.AggregatedSignal, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.sig.TotalConviction > 0 {
			g.sig.AvgEntryPrice = g.weightedSum / g.sig.TotalConviction
		}
		g.sig.Wallets = make([]string, 0, len(g.wallets))
		for w := range g.wallets {
			g.sig.Wallets = append(g.sig.Wallets, w)
		}
		sort.Strings(g.sig.Wallets)
		g.sig.WalletCount = len(g.sig.Wallets)
		out = append(out, g.sig)
	}
	return out
}
