package whale

import (
	"fmt"
	"math"
	"strings"

	"WhaleConsensus/internal/model"
)

// toScore truncates an interpolated score, absorbing float noise just below
// an integer boundary.
func toScore(x float64) int {
	if x >= 0 {
		x = math.Floor(x + 1e-9)
	}
	return clamp(int(x), 0, 100)
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

// scoreROI blends win rate and return on cost.
func (s *Scorer) scoreROI(closed []closedTrade) model.FactorScore {
	f := model.FactorScore{Name: "ROI", Weight: s.cfg.WeightROI}
	if len(closed) == 0 {
		f.Score = 50
		f.Commentary = "NO_DATA"
		return f
	}

	var cost, profit float64
	winners := 0
	for _, c := range closed {
		cost += c.EntryPrice * c.Size
		profit += c.PnL
		if c.winner() {
			winners++
		}
	}
	winRate := float64(winners) / float64(len(closed))
	var roi float64
	if cost > 0 {
		roi = profit / cost
	}

	var score int
	if roi < 0 {
		score = toScore(math.Max(0, 50+roi*100))
		f.Commentary = fmt.Sprintf("NEGATIVE (ROI %.1f%%)", roi*100)
	} else {
		score = toScore(winRate*100 + roi*50)
		f.Commentary = fmt.Sprintf("WR %.0f%% / ROI %.1f%%", winRate*100, roi*100)
	}
	if profit > s.cfg.WhaleBonusProfit {
		score = clamp(score+10, 0, 100)
		f.Commentary += " +WHALE"
	}
	if winRate < s.cfg.MinWinRate && score > 50 {
		score = 50
		f.Commentary += " LUCK_CAP"
	}
	f.Score = score
	return f
}

// disciplineCurve maps the loser/winner hold ratio onto 0..100 with anchors
// 0.5 -> 100, 1.0 -> 50, 2.0 -> 0.
func disciplineCurve(ratio float64) int {
	switch {
	case ratio <= 0.5:
		return 100
	case ratio <= 1.0:
		return toScore(100 - (ratio-0.5)*100)
	case ratio <= 2.0:
		return toScore(50 - (ratio-1.0)*50)
	default:
		return 0
	}
}

// scoreDiscipline compares how long losers are held against winners.
func (s *Scorer) scoreDiscipline(closed []closedTrade) model.FactorScore {
	f := model.FactorScore{Name: "Discipline", Weight: s.cfg.WeightDiscipline, Score: 50}
	var winHours, loseHours float64
	var wins, losses int
	for _, c := range closed {
		if c.winner() {
			winHours += c.holdHours()
			wins++
		} else {
			loseHours += c.holdHours()
			losses++
		}
	}
	if wins == 0 || losses == 0 {
		f.Commentary = "INSUFFICIENT"
		return f
	}
	avgWin := winHours / float64(wins)
	avgLoss := loseHours / float64(losses)
	if avgWin == 0 {
		f.Commentary = "NEUTRAL"
		return f
	}
	ratio := avgLoss / avgWin
	f.Score = disciplineCurve(ratio)
	switch {
	case ratio <= 0.5:
		f.Commentary = fmt.Sprintf("EXCEPTIONAL (R=%.2f)", ratio)
	case ratio <= 1.0:
		f.Commentary = fmt.Sprintf("GOOD (R=%.2f)", ratio)
	case ratio <= 1.5:
		f.Commentary = fmt.Sprintf("MODERATE (R=%.2f)", ratio)
	default:
		f.Commentary = fmt.Sprintf("POOR (R=%.2f)", ratio)
	}
	return f
}

// precisionCurve maps turnover onto 0..100: below 2 is a sniper, above 10 a churner.
func precisionCurve(turnover float64) int {
	switch {
	case turnover < 2.0:
		return 100
	case turnover > 10.0:
		return 0
	default:
		return toScore(100 - (turnover-2.0)*12.5)
	}
}

// scorePrecision penalizes overtrading unless the wallet is clearly profitable.
func (s *Scorer) scorePrecision(tradeCount, openPositions, roiScore int) model.FactorScore {
	f := model.FactorScore{Name: "Precision", Weight: s.cfg.WeightPrecision}
	if roiScore > s.cfg.PrecisionBypassROI {
		f.Score = 100
		f.Commentary = "BYPASS (HIGH_ROI)"
		return f
	}
	turnover := float64(tradeCount) / float64(openPositions+1)
	f.Score = precisionCurve(turnover)
	switch {
	case turnover < 2.0:
		f.Commentary = fmt.Sprintf("PRECISE (T=%.1f)", turnover)
	case turnover > 10.0:
		f.Commentary = fmt.Sprintf("CHURNING (T=%.1f)", turnover)
	default:
		f.Commentary = fmt.Sprintf("ACTIVE (T=%.1f)", turnover)
	}
	return f
}

// timingCurve maps the average entry percentile onto 0..100.
func timingCurve(p float64) int {
	switch {
	case p < 0.2:
		return 100
	case p < 0.3:
		return toScore(100 - (p-0.2)*500)
	case p <= 0.7:
		return 50
	case p <= 0.8:
		return toScore(50 - (p-0.7)*500)
	default:
		return 0
	}
}

// scoreTiming uses entry price as a proxy for how early the wallet moves.
func (s *Scorer) scoreTiming(trades []model.Trade) model.FactorScore {
	f := model.FactorScore{Name: "Timing", Weight: s.cfg.WeightTiming, Score: 50}
	var sum float64
	var n int
	for _, t := range trades {
		switch model.TradeSide(strings.ToUpper(string(t.Side))) {
		case model.TradeBuy:
			sum += t.Price
			n++
		case model.TradeSell:
			sum += 1 - t.Price
			n++
		}
	}
	if n == 0 {
		f.Commentary = "NO_DATA"
		return f
	}
	p := sum / float64(n)
	f.Score = timingCurve(p)
	switch {
	case p < 0.2:
		f.Commentary = fmt.Sprintf("PIONEER (P=%.2f)", p)
	case p < 0.3:
		f.Commentary = fmt.Sprintf("EARLY (P=%.2f)", p)
	case p <= 0.7:
		f.Commentary = fmt.Sprintf("CROWD (P=%.2f)", p)
	case p <= 0.8:
		f.Commentary = fmt.Sprintf("LATE (P=%.2f)", p)
	default:
		f.Commentary = fmt.Sprintf("FOMO (P=%.2f)", p)
	}
	return f
}
