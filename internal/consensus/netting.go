// Package consensus turns per-wallet position snapshots into ranked signals.
// Everything here is a pure function of its inputs.
package consensus

import (
	"math"

	"WhaleConsensus/internal/model"
)

// NetMarket collapses one wallet's YES and NO holdings in a single market.
// Either side may be nil. It reports false when nothing survives, including
// the fully hedged case.
func NetMarket(yes, no *model.RawPosition) (model.NettedPosition, bool) {
	var yesSize, noSize float64
	if yes != nil && yes.Size > 0 {
		yesSize = yes.Size
	}
	if no != nil && no.Size > 0 {
		noSize = no.Size
	}
	overlap := math.Min(yesSize, noSize)
	netYes := yesSize - overlap
	netNo := noSize - overlap

	switch {
	case netYes > 0:
		return netted(yes, netYes), true
	case netNo > 0:
		return netted(no, netNo), true
	default:
		return model.NettedPosition{}, false
	}
}

func netted(p *model.RawPosition, size float64) model.NettedPosition {
	return model.NettedPosition{
		Wallet:       model.NormalizeWallet(p.Wallet),
		MarketID:     p.MarketID,
		MarketName:   p.MarketName,
		MarketSlug:   p.MarketSlug,
		OutcomeLabel: p.OutcomeLabel,
		TokenID:      p.TokenID,
		Side:         p.Side,
		NetSize:      size,
		EntryPrice:   p.EntryPrice,
		CurrentPrice: p.CurrentPrice,
		OpenedAt:     p.OpenedAt,
	}
}

type marketKey struct {
	wallet string
	market string
	label  string
}

type marketLegs struct {
	yes *model.RawPosition
	no  *model.RawPosition
}

// NetPositions groups raw positions by (wallet, market, outcome label) and
// nets each group. Repeated positions on one side are merged first with a
// size-weighted entry price. Output follows first-seen group order.
func NetPositions(positions []model.RawPosition) []model.NettedPosition {
	groups := make(map[marketKey]*marketLegs)
	var order []marketKey

	for i := range positions {
		p := positions[i]
		k := marketKey{
			wallet: model.NormalizeWallet(p.Wallet),
			market: p.MarketID,
			label:  model.NormalizeLabel(p.OutcomeLabel),
		}
		legs, ok := groups[k]
		if !ok {
			legs = &marketLegs{}
			groups[k] = legs
			order = append(order, k)
		}
		if p.Side == model.SideYes {
			legs.yes = mergeLeg(legs.yes, p)
		} else {
			legs.no = mergeLeg(legs.no, p)
		}
	}

	out := make([]model.NettedPosition, 0, len(order))
	for _, k := range order {
		legs := groups[k]
		if np, ok := NetMarket(legs.yes, legs.no); ok {
			out = append(out, np)
		}
	}
	return out
}

func mergeLeg(existing *model.RawPosition, p model.RawPosition) *model.RawPosition {
	if existing == nil {
		cp := p
		return &cp
	}
	total := existing.Size + p.Size
	if total > 0 {
		existing.EntryPrice = (existing.EntryPrice*existing.Size + p.EntryPrice*p.Size) / total
	}
	existing.Size = total
	existing.CurrentPrice = p.CurrentPrice
	if existing.TokenID == "" {
		existing.TokenID = p.TokenID
	}
	if p.OpenedAt != nil && (existing.OpenedAt == nil || p.OpenedAt.Before(*existing.OpenedAt)) {
		existing.OpenedAt = p.OpenedAt
	}
	return existing
}
