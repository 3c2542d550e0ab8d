package strategy

import (
	"fmt"
	"math"
	"time"

	"WhaleConsensus/internal/model"
)

// scoreFLB applies the favorite-longshot bias zones to the current price.
// Longshot penalties scale with tolerance and truncate toward zero.
func scoreFLB(price, tolerance float64) model.FactorScore {
	var score int
	var commentary string
	switch {
	case price < 0.05:
		score = int(-40 * tolerance)
		commentary = fmt.Sprintf("Lottery Zone (%+d): price $%.2f < $0.05, heavy retail overpricing", score, price)
	case price < 0.15:
		score = int(-20 * tolerance)
		commentary = fmt.Sprintf("Hope Zone (%+d): price $%.2f, moderate overpricing", score, price)
	case price > 0.85:
		score = 15
		commentary = fmt.Sprintf("Favorite Value (+15): price $%.2f > $0.85, risk-aversion discount", price)
	default:
		commentary = fmt.Sprintf("Neutral Price (0): no FLB edge at $%.2f", price)
	}
	return model.FactorScore{Name: "FLB", Score: score, Commentary: commentary}
}

// scoreMomentum compares the current price with the weekly average.
// weeklyAvg <= 0 means no usable price history.
func scoreMomentum(price, weeklyAvg float64, trendMode bool) model.FactorScore {
	if !trendMode {
		return model.FactorScore{Name: "Momentum", Commentary: "Momentum (0): trend mode disabled"}
	}
	if weeklyAvg <= 0 {
		return model.FactorScore{Name: "Momentum", Commentary: "Momentum (0): insufficient price history"}
	}
	ratio := price / weeklyAvg
	pct := (ratio - 1.0) * 100
	switch {
	case ratio > 1.05:
		return model.FactorScore{Name: "Momentum", Score: 10,
			Commentary: fmt.Sprintf("Breakout (+10): price %+.1f%% above weekly average", pct)}
	case ratio < 0.95:
		return model.FactorScore{Name: "Momentum", Score: -10,
			Commentary: fmt.Sprintf("Falling Knife (-10): price %+.1f%% below weekly average", pct)}
	default:
		return model.FactorScore{Name: "Momentum",
			Commentary: fmt.Sprintf("No Momentum (0): price near weekly average (%+.1f%%)", pct)}
	}
}

// scoreSmartShort rewards NO consensus in sentiment-heavy sectors.
func scoreSmartShort(direction model.Side, category model.Category) model.FactorScore {
	if direction != model.SideNo {
		return model.FactorScore{Name: "Smart Short"}
	}
	switch category {
	case model.CategorySports, model.CategoryPolitics:
		return model.FactorScore{Name: "Smart Short", Score: 20,
			Commentary: fmt.Sprintf("Smart Short (+20): against public sentiment in %s", category)}
	case model.CategoryEntertainment:
		return model.FactorScore{Name: "Smart Short", Score: 15,
			Commentary: fmt.Sprintf("Smart Short (+15): against sentiment in %s", category)}
	default:
		return model.FactorScore{Name: "Smart Short", Score: 10,
			Commentary: fmt.Sprintf("Smart Short (+10): NO bet in %s", category)}
	}
}

// scoreFreshness decays by 2 points per whole day since the earliest entry.
func scoreFreshness(earliest *time.Time, now time.Time) model.FactorScore {
	if earliest == nil || earliest.IsZero() {
		return model.FactorScore{Name: "Freshness", Commentary: "Freshness (0): no timestamp data"}
	}
	age := now.Sub(*earliest)
	if age < 0 {
		age = 0
	}
	days := math.Floor(age.Hours() / 24)
	score := int(math.Max(0, 10-2*days))
	switch {
	case days < 1:
		return model.FactorScore{Name: "Freshness", Score: score,
			Commentary: fmt.Sprintf("Fresh Signal (+%d): detected < 24h ago", score)}
	case score > 0:
		return model.FactorScore{Name: "Freshness", Score: score,
			Commentary: fmt.Sprintf("Recent Signal (+%d): %.0f days old", score, days)}
	default:
		return model.FactorScore{Name: "Freshness", Commentary: "Stale Signal (0): > 5 days old"}
	}
}
