package calculator

import (
	"errors"
	"time"

	"WhaleConsensus/internal/model"
)

// DefaultLookback is the momentum reference window.
const DefaultLookback = 7 * 24 * time.Hour

// ErrNoSamples is returned when nothing usable falls inside the window.
var ErrNoSamples = errors.New("no price samples")

// Mean computes the simple arithmetic mean of prices.
func Mean(prices []float64) (float64, error) {
	if len(prices) == 0 {
		return 0, ErrNoSamples
	}
	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices)), nil
}

// WindowAverage averages the positive samples taken at or after since.
// A zero since uses every sample.
func WindowAverage(points []model.PricePoint, since time.Time) (float64, error) {
	prices := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		if !since.IsZero() && p.Time.Before(since) {
			continue
		}
		prices = append(prices, p.Price)
	}
	return Mean(prices)
}
