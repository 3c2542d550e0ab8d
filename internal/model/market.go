package model

import (
	"strings"
	"time"
)

// Side is the direction of a binary-outcome position.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// ParseSide maps an upstream outcome string onto a Side. Anything that is
// not "yes" is treated as the NO leg of a binary market.
func ParseSide(outcome string) Side {
	if strings.EqualFold(strings.TrimSpace(outcome), "yes") {
		return SideYes
	}
	return SideNo
}

// Category is the coarse market sector used by the alpha model.
type Category string

const (
	CategorySports        Category = "sports"
	CategoryPolitics      Category = "politics"
	CategoryFinance       Category = "finance"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// PricePoint is one sample of a token's price history.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// Market is the metadata returned by the market provider.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	Tags        []string
}

// TradeSide is BUY or SELL in a wallet's activity feed.
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// Trade is one fill from a wallet's activity history.
type Trade struct {
	Asset       string    `json:"asset"`
	ConditionID string    `json:"condition_id"`
	Side        TradeSide `json:"side"`
	Price       float64   `json:"price"`
	Size        float64   `json:"size"`
	Timestamp   time.Time `json:"timestamp"`
	Slug        string    `json:"slug,omitempty"`
}

// TradeHistory is the input to whale scoring: a bounded activity window plus
// the number of positions the wallet currently holds open.
type TradeHistory struct {
	Trades        []Trade
	OpenPositions int
}
