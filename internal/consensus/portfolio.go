package consensus

import (
	"github.com/shopspring/decimal"

	"WhaleConsensus/internal/model"
)

// DivergenceMinWallets is the opposing consensus size that flags a position.
const DivergenceMinWallets = 2

// TrimProfitPct is the unrealized gain above which an unsupported position
// should be trimmed.
const TrimProfitPct = 20.0

// ValidatePositions labels each user position against the current signals.
func ValidatePositions(user []model.NettedPosition, signals []model.AggregatedSignal) []model.PortfolioPosition {
	index := make(map[string]model.AggregatedSignal, len(signals))
	for _, s := range signals {
		index[GroupKey(s.MarketID, s.OutcomeLabel, s.Direction)] = s
	}

	out := make([]model.PortfolioPosition, 0, len(user))
	for _, p := range user {
		pp := model.PortfolioPosition{
			MarketID:     p.MarketID,
			MarketName:   p.MarketName,
			OutcomeLabel: p.OutcomeLabel,
			Direction:    p.Side,
			SizeUSDC:     p.Conviction(),
			EntryPrice:   p.EntryPrice,
			CurrentPrice: p.CurrentPrice,
			PnLPercent:   pnlPercent(p.EntryPrice, p.CurrentPrice),
			Status:       model.StatusValidated,
		}

		same, hasSame := index[GroupKey(p.MarketID, p.OutcomeLabel, p.Side)]
		opp, hasOpp := index[GroupKey(p.MarketID, p.OutcomeLabel, p.Side.Opposite())]
		switch {
		case hasSame:
			pp.WhaleConsensus = true
			pp.WhaleCount = same.WalletCount
		case hasOpp && opp.WalletCount >= DivergenceMinWallets:
			pp.Status = model.StatusDivergence
		case !hasOpp && pp.PnLPercent > TrimProfitPct:
			pp.Status = model.StatusTrim
		}
		out = append(out, pp)
	}
	return out
}

// BuildPortfolio validates a wallet's positions and totals them.
func BuildPortfolio(wallet string, user []model.NettedPosition, signals []model.AggregatedSignal, balance decimal.Decimal) model.Portfolio {
	positions := ValidatePositions(user, signals)
	pf := model.Portfolio{
		Wallet:        model.NormalizeWallet(wallet),
		USDCBalance:   balance.Round(2),
		TotalInvested: decimal.Zero,
		TotalPnL:      decimal.Zero,
		Positions:     positions,
	}
	for _, p := range positions {
		size := decimal.NewFromFloat(p.SizeUSDC)
		pf.TotalInvested = pf.TotalInvested.Add(size)
		pf.TotalPnL = pf.TotalPnL.Add(size.Mul(decimal.NewFromFloat(p.PnLPercent)).Div(decimal.NewFromInt(100)))
		if p.WhaleConsensus {
			pf.ValidatedCount++
		}
		if p.Status == model.StatusDivergence {
			pf.DivergenceCount++
		}
	}
	pf.TotalInvested = pf.TotalInvested.Round(2)
	pf.TotalPnL = pf.TotalPnL.Round(2)
	return pf
}

func pnlPercent(entry, current float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (current - entry) / entry * 100
}
