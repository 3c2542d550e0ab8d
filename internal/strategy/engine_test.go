package strategy

import (
	"testing"
	"time"

	"WhaleConsensus/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func TestScoreFLB_Zones(t *testing.T) {
	tests := []struct {
		price     float64
		tolerance float64
		want      int
	}{
		{0.03, 1.0, -40},
		{0.03, 1.5, -60},
		{0.03, 0.5, -20},
		{0.08, 1.0, -20},
		{0.08, 1.2, -24},
		{0.05, 1.0, -20},
		{0.15, 1.0, 0},
		{0.50, 1.5, 0},
		{0.85, 1.0, 0},
		{0.86, 1.0, 15},
		{0.97, 0.5, 15},
	}
	for _, tt := range tests {
		got := scoreFLB(tt.price, tt.tolerance)
		if got.Score != tt.want {
			t.Errorf("scoreFLB(%.2f, %.1f) = %d, want %d", tt.price, tt.tolerance, got.Score, tt.want)
		}
	}
}

func TestScoreMomentum(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		avg   float64
		trend bool
		want  int
	}{
		{"breakout", 0.72, 0.65, true, 10},
		{"falling knife", 0.60, 0.65, true, -10},
		{"flat", 0.66, 0.65, true, 0},
		{"no history", 0.72, 0, true, 0},
		{"trend disabled", 0.72, 0.65, false, 0},
	}
	for _, tt := range tests {
		got := scoreMomentum(tt.price, tt.avg, tt.trend)
		if got.Score != tt.want {
			t.Errorf("%s: momentum = %d, want %d", tt.name, got.Score, tt.want)
		}
	}
}

func TestScoreSmartShort(t *testing.T) {
	tests := []struct {
		dir  model.Side
		cat  model.Category
		want int
	}{
		{model.SideNo, model.CategorySports, 20},
		{model.SideNo, model.CategoryPolitics, 20},
		{model.SideNo, model.CategoryEntertainment, 15},
		{model.SideNo, model.CategoryFinance, 10},
		{model.SideNo, model.CategoryOther, 10},
		{model.SideYes, model.CategoryPolitics, 0},
		{model.SideYes, model.CategoryOther, 0},
	}
	for _, tt := range tests {
		if got := scoreSmartShort(tt.dir, tt.cat); got.Score != tt.want {
			t.Errorf("smart short %s/%s = %d, want %d", tt.dir, tt.cat, got.Score, tt.want)
		}
	}
}

func TestScoreFreshness(t *testing.T) {
	tests := []struct {
		name     string
		earliest *time.Time
		want     int
	}{
		{"missing", nil, 0},
		{"18 hours", ago(18 * time.Hour), 10},
		{"two days", ago(49 * time.Hour), 6},
		{"four days", ago(4*24*time.Hour + time.Minute), 2},
		{"five days", ago(5 * 24 * time.Hour), 0},
		{"stale", ago(30 * 24 * time.Hour), 0},
		{"clock skew", ago(-time.Hour), 10},
	}
	for _, tt := range tests {
		if got := scoreFreshness(tt.earliest, testNow); got.Score != tt.want {
			t.Errorf("%s: freshness = %d, want %d", tt.name, got.Score, tt.want)
		}
	}
}

func TestEvaluate_FullExample(t *testing.T) {
	in := Input{
		Signal: model.AggregatedSignal{
			Direction:     model.SideYes,
			CurrentPrice:  0.72,
			Category:      model.CategoryPolitics,
			EarliestEntry: ago(18 * time.Hour),
		},
		WeeklyAverage: 0.65,
		Settings:      model.DefaultSettings(),
	}
	b := Evaluate(in, testNow)
	if b.Base != 50 || b.FLB != 0 || b.Momentum != 10 || b.SmartShort != 0 || b.Freshness != 10 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if b.Total != 70 {
		t.Errorf("expected total 70, got %d", b.Total)
	}
	if len(b.Details) == 0 || b.Details[0] != "Base: 50" {
		t.Errorf("expected details to start with base line, got %v", b.Details)
	}
}

func TestEvaluate_ClampsAtExtremes(t *testing.T) {
	high := Input{
		Signal: model.AggregatedSignal{
			Direction:     model.SideNo,
			CurrentPrice:  0.95,
			Category:      model.CategorySports,
			EarliestEntry: ago(time.Hour),
		},
		WeeklyAverage: 0.80,
		Settings:      model.DefaultSettings(),
	}
	if got := Evaluate(high, testNow).Total; got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}

	s := model.DefaultSettings()
	s.LongshotTolerance = 1.5
	low := Input{
		Signal: model.AggregatedSignal{
			Direction:    model.SideYes,
			CurrentPrice: 0.01,
			Category:     model.CategoryOther,
		},
		WeeklyAverage: 0.05,
		Settings:      s,
	}
	if got := Evaluate(low, testNow).Total; got != 0 {
		t.Errorf("expected clamp to 0, got %d", got)
	}
}

func TestEvaluate_TotalAlwaysInRange(t *testing.T) {
	prices := []float64{0.001, 0.04, 0.05, 0.1, 0.15, 0.5, 0.85, 0.86, 0.999}
	avgs := []float64{0, 0.01, 0.5, 0.99}
	tolerances := []float64{0.5, 1.0, 1.5}
	sides := []model.Side{model.SideYes, model.SideNo}
	cats := []model.Category{model.CategorySports, model.CategoryEntertainment, model.CategoryOther}
	entries := []*time.Time{nil, ago(time.Hour), ago(100 * time.Hour)}

	for _, p := range prices {
		for _, a := range avgs {
			for _, tol := range tolerances {
				for _, side := range sides {
					for _, c := range cats {
						for _, e := range entries {
							s := model.DefaultSettings()
							s.LongshotTolerance = tol
							b := Evaluate(Input{
								Signal: model.AggregatedSignal{
									Direction: side, CurrentPrice: p, Category: c, EarliestEntry: e,
								},
								WeeklyAverage: a,
								Settings:      s,
							}, testNow)
							if b.Total < 0 || b.Total > 100 {
								t.Fatalf("total %d out of range for price=%v avg=%v tol=%v", b.Total, p, a, tol)
							}
						}
					}
				}
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		tags []string
		want model.Category
	}{
		{nil, model.CategoryOther},
		{[]string{"NBA", "Playoffs"}, model.CategorySports},
		{[]string{"Election", "Bitcoin"}, model.CategoryPolitics},
		{[]string{"crypto"}, model.CategoryFinance},
		{[]string{"Oscars"}, model.CategoryEntertainment},
		{[]string{"weather"}, model.CategoryOther},
		{[]string{"bitcoin", "football"}, model.CategorySports},
	}
	for _, tt := range tests {
		if got := Classify(tt.tags); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.tags, got, tt.want)
		}
	}
}
