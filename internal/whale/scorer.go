package whale

import "WhaleConsensus/internal/model"

// Config holds pillar weights and thresholds.
type Config struct {
	WeightROI          float64
	WeightDiscipline   float64
	WeightPrecision    float64
	WeightTiming       float64
	MinTrades          int
	WhaleBonusProfit   float64
	MinWinRate         float64
	PrecisionBypassROI int
	BagholderBelow     int
}

// DefaultConfig returns the standard weights (35/25/20/20) and thresholds.
func DefaultConfig() Config {
	return Config{
		WeightROI:          0.35,
		WeightDiscipline:   0.25,
		WeightPrecision:    0.20,
		WeightTiming:       0.20,
		MinTrades:          5,
		WhaleBonusProfit:   50_000,
		MinWinRate:         0.40,
		PrecisionBypassROI: 80,
		BagholderBelow:     30,
	}
}

// Tiers maps a total score onto a tier, highest first.
var Tiers = []struct {
	MinScore int
	Tier     model.Tier
}{
	{80, model.TierElite},
	{60, model.TierPro},
	{40, model.TierStd},
}

// DefaultTier applies below the lowest threshold.
var DefaultTier = model.TierWeak

func mapTier(total int) model.Tier {
	for _, t := range Tiers {
		if total >= t.MinScore {
			return t.Tier
		}
	}
	return DefaultTier
}

// Scorer computes whale profiles. It holds no state between calls.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer with the given config.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score grades a wallet from its trade history.
func (s *Scorer) Score(wallet string, h model.TradeHistory) model.WhaleProfile {
	if len(h.Trades) < s.cfg.MinTrades {
		return model.NeutralProfile(wallet, len(h.Trades))
	}

	closed := matchTrades(h.Trades)

	roi := s.scoreROI(closed)
	disc := s.scoreDiscipline(closed)
	prec := s.scorePrecision(len(h.Trades), h.OpenPositions, roi.Score)
	timing := s.scoreTiming(h.Trades)

	pillars := []model.FactorScore{roi, disc, prec, timing}
	var raw float64
	for i := range pillars {
		pillars[i].Weighted = float64(pillars[i].Score) * pillars[i].Weight
		raw += pillars[i].Weighted
	}
	total := toScore(raw)

	return model.WhaleProfile{
		Wallet:          model.NormalizeWallet(wallet),
		ROIScore:        roi.Score,
		DisciplineScore: disc.Score,
		PrecisionScore:  prec.Score,
		TimingScore:     timing.Score,
		TotalScore:      total,
		Tier:            mapTier(total),
		Tags:            s.tags(roi.Score, disc.Score, prec.Score, timing.Score),
		TradeCount:      len(h.Trades),
		Pillars:         pillars,
	}
}

func (s *Scorer) tags(roi, disc, prec, timing int) []string {
	tags := []string{}
	if disc > 90 {
		tags = append(tags, model.TagHolder)
	} else if disc < 20 {
		tags = append(tags, model.TagDumper)
	}
	if prec > 90 {
		tags = append(tags, model.TagPrecise)
	} else if prec < 20 {
		tags = append(tags, model.TagChurner)
	}
	if timing > 80 {
		tags = append(tags, model.TagPioneer)
	}
	if roi > 80 {
		tags = append(tags, model.TagProfit)
	}
	if disc < s.cfg.BagholderBelow {
		tags = append(tags, model.TagBagholder)
	}
	return tags
}
