package model

import (
	"strings"
	"time"
)

// RawPosition is a single wallet holding as reported by the position provider.
type RawPosition struct {
	Wallet       string     `json:"wallet"`
	MarketID     string     `json:"market_id"`
	MarketName   string     `json:"market_name,omitempty"`
	MarketSlug   string     `json:"market_slug,omitempty"`
	OutcomeLabel string     `json:"outcome_label"`
	TokenID      string     `json:"token_id"`
	Side         Side       `json:"side"`
	Size         float64    `json:"size"`
	EntryPrice   float64    `json:"entry_price"`
	CurrentPrice float64    `json:"current_price"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
}

// NettedPosition is the directional exposure left after YES and NO holdings
// in the same market cancel out. NetSize is never negative.
type NettedPosition struct {
	Wallet       string     `json:"wallet"`
	MarketID     string     `json:"market_id"`
	MarketName   string     `json:"market_name,omitempty"`
	MarketSlug   string     `json:"market_slug,omitempty"`
	OutcomeLabel string     `json:"outcome_label"`
	TokenID      string     `json:"token_id"`
	Side         Side       `json:"side"`
	NetSize      float64    `json:"net_size"`
	EntryPrice   float64    `json:"entry_price"`
	CurrentPrice float64    `json:"current_price"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
}

// Conviction is the capital committed to the position in USDC.
func (p NettedPosition) Conviction() float64 {
	return p.NetSize * p.EntryPrice
}

// NormalizeLabel folds an outcome label for grouping comparisons.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// NormalizeWallet folds a wallet address for identity comparisons.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
