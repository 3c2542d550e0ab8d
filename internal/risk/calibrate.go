package risk

import (
	"fmt"
	"math"
)

// Calibrate corrects a market price for the favorite-longshot bias and
// returns the adjusted probability with a note per adjustment applied.
func Calibrate(price float64) (float64, []string) {
	adjustments := []string{}
	p := price
	switch {
	case price < 0.05:
		p = price * 0.7
		adjustments = append(adjustments, fmt.Sprintf("FLB_LOTTERY -30%% (%.3f->%.3f)", price, p))
	case price < 0.15:
		p = price * 0.9
		adjustments = append(adjustments, fmt.Sprintf("FLB_HOPE -10%% (%.3f->%.3f)", price, p))
	case price > 0.90:
		p = math.Min(0.99, price+0.01)
		adjustments = append(adjustments, fmt.Sprintf("FLB_FAVORITE +1pp (%.3f->%.3f)", price, p))
	}
	return math.Max(0.001, math.Min(0.99, p)), adjustments
}

// Dampener scales a stake by the average skill of the participating wallets.
func Dampener(scores []int) (float64, string) {
	if len(scores) == 0 {
		return 0.5, "NO_SCORES"
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))

	var d float64
	var detail string
	switch {
	case avg >= 80:
		d = 1.0
		detail = fmt.Sprintf("ELITE_CONSENSUS (avg=%.0f)", avg)
	case avg >= 60:
		d = 0.5 + (avg-60)/20*0.5
		detail = fmt.Sprintf("PRO_CONSENSUS (avg=%.0f)", avg)
	case avg >= 50:
		d = 0.25 + (avg-50)/10*0.25
		detail = fmt.Sprintf("MIXED_CONSENSUS (avg=%.0f)", avg)
	default:
		d = 0.25
		detail = fmt.Sprintf("WEAK_CONSENSUS (avg=%.0f)", avg)
	}
	return math.Round(d*1000) / 1000, detail
}
