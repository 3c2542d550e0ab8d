package model

// Tier is the categorical skill grade of a tracked wallet.
type Tier string

const (
	TierElite   Tier = "ELITE"
	TierPro     Tier = "PRO"
	TierStd     Tier = "STD"
	TierWeak    Tier = "WEAK"
	TierUnrated Tier = "UNRATED"
)

// Rank orders tiers for minimum-tier filters. UNRATED ranks lowest.
func (t Tier) Rank() int {
	switch t {
	case TierElite:
		return 4
	case TierPro:
		return 3
	case TierStd:
		return 2
	case TierWeak:
		return 1
	default:
		return 0
	}
}

// Whale tags.
const (
	TagHolder    = "HLD"
	TagDumper    = "DUMP"
	TagPrecise   = "PRC"
	TagChurner   = "CHRN"
	TagPioneer   = "PNIR"
	TagProfit    = "PROF"
	TagBagholder = "BAGHOLDER"
)

// WhaleProfile is a wallet's skill grade derived from its trade history.
type WhaleProfile struct {
	Wallet          string        `json:"wallet"`
	ROIScore        int           `json:"roi_score"`
	DisciplineScore int           `json:"discipline_score"`
	PrecisionScore  int           `json:"precision_score"`
	TimingScore     int           `json:"timing_score"`
	TotalScore      int           `json:"total_score"`
	Tier            Tier          `json:"tier"`
	Tags            []string      `json:"tags"`
	TradeCount      int           `json:"trade_count"`
	Pillars         []FactorScore `json:"pillars,omitempty"`
}

// HasTag reports whether the profile carries tag.
func (p WhaleProfile) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsBagholder reports whether the wallet holds losers too long.
func (p WhaleProfile) IsBagholder() bool { return p.HasTag(TagBagholder) }

// NeutralProfile is used when a wallet has not been or could not be scored.
func NeutralProfile(wallet string, trades int) WhaleProfile {
	return WhaleProfile{
		Wallet:          NormalizeWallet(wallet),
		ROIScore:        50,
		DisciplineScore: 50,
		PrecisionScore:  50,
		TimingScore:     50,
		TotalScore:      50,
		Tier:            TierUnrated,
		Tags:            []string{},
		TradeCount:      trades,
	}
}
