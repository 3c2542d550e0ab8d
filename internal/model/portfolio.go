package model

import "github.com/shopspring/decimal"

// PositionStatus is the verdict on a user position against whale consensus.
type PositionStatus string

const (
	StatusValidated  PositionStatus = "VALIDATED"
	StatusDivergence PositionStatus = "DIVERGENCE"
	StatusTrim       PositionStatus = "TRIM"
)

// PortfolioPosition is one user holding annotated with its status.
type PortfolioPosition struct {
	MarketID       string         `json:"market_id"`
	MarketName     string         `json:"market_name"`
	OutcomeLabel   string         `json:"outcome_label"`
	Direction      Side           `json:"direction"`
	SizeUSDC       float64        `json:"size_usdc"`
	EntryPrice     float64        `json:"entry_price"`
	CurrentPrice   float64        `json:"current_price"`
	PnLPercent     float64        `json:"pnl_percent"`
	Status         PositionStatus `json:"status"`
	WhaleConsensus bool           `json:"whale_consensus"`
	WhaleCount     int            `json:"whale_count"`
}

// Portfolio is the validated view of a user's wallet.
type Portfolio struct {
	Wallet          string              `json:"wallet_address"`
	USDCBalance     decimal.Decimal     `json:"usdc_balance"`
	TotalInvested   decimal.Decimal     `json:"total_invested"`
	TotalPnL        decimal.Decimal     `json:"total_pnl"`
	Positions       []PortfolioPosition `json:"positions"`
	ValidatedCount  int                 `json:"validated_count"`
	DivergenceCount int                 `json:"divergence_count"`
}
