package recorder

import (
	"context"

	"WhaleConsensus/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordCycle(context.Context, *CycleRecord) error { return nil }
func (n *NoopRecorder) RecordWhaleProfiles(context.Context, []model.WhaleProfile) error {
	return nil
}
func (n *NoopRecorder) LatestWhaleProfiles(context.Context) ([]model.WhaleProfile, error) {
	return nil, nil
}
func (n *NoopRecorder) RecentCycles(context.Context, int) ([]CycleSummary, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                              { return nil }
