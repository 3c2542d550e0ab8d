package recorder

import (
	"context"
	"time"

	"WhaleConsensus/internal/model"
)

// CycleRecord is one completed evaluation cycle.
type CycleRecord struct {
	ID            string
	Seq           uint64
	StartedAt     time.Time
	Duration      time.Duration
	Wallets       int
	FailedWallets int
	Settings      model.Settings
	Signals       []model.Signal
}

// CycleSummary is a stored cycle without its signals.
type CycleSummary struct {
	ID            string        `json:"id"`
	Seq           uint64        `json:"seq"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Wallets       int           `json:"wallets"`
	FailedWallets int           `json:"failed_wallets"`
	SignalCount   int           `json:"signal_count"`
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordCycle(ctx context.Context, rec *CycleRecord) error
	RecordWhaleProfiles(ctx context.Context, profiles []model.WhaleProfile) error
	// LatestWhaleProfiles returns the newest stored profile per wallet,
	// best score first.
	LatestWhaleProfiles(ctx context.Context) ([]model.WhaleProfile, error)
	RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error)
	Close() error
}
