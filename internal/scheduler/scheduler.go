package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"WhaleConsensus/internal/cache"
	"WhaleConsensus/internal/collector"
	"WhaleConsensus/internal/consensus"
	"WhaleConsensus/internal/metrics"
	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/notifier"
	"WhaleConsensus/internal/publish"
	"WhaleConsensus/internal/recorder"
	"WhaleConsensus/internal/watchlist"
)

// ErrSuperseded is returned by RunCycle when a newer cycle started before
// this one could publish its result.
var ErrSuperseded = errors.New("cycle superseded")

// ErrNoPositions is returned by RunCycle when no tracked wallet could be
// fetched. The previous result stays published.
var ErrNoPositions = errors.New("no wallet positions collected")

// maxAlertsPerCycle bounds Telegram alerts when many signals appear at once.
const maxAlertsPerCycle = 5

// Source collects the inputs of one evaluation cycle.
type Source interface {
	Collect(ctx context.Context, wallets []string, names map[string]string) (*collector.Collection, error)
}

// Sender delivers alert text.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Broadcaster fans a payload out to live stream clients.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Scheduler drives the evaluation cycle and owns the latest result.
type Scheduler struct {
	Cron      *cron.Cron
	Source    Source
	Watchlist *watchlist.Manager
	Cache     *cache.Store
	Notifier  Sender
	Recorder  recorder.Recorder
	Publisher publish.Publisher
	Hub       Broadcaster
	Ctx       context.Context

	latest atomic.Pointer[Result]
	seq    atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	now    func() time.Time
}

// NewScheduler creates a new Scheduler. notifier and hub may be nil.
func NewScheduler(ctx context.Context, src Source, wl *watchlist.Manager, store *cache.Store, n Sender, rec recorder.Recorder, pub publish.Publisher, hub Broadcaster) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if pub == nil {
		pub = publish.Noop{}
	}
	if store == nil {
		store = cache.NewStore(nil, cache.DefaultTTLs())
	}
	logger := cronLogger{}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Source:    src,
		Watchlist: wl,
		Cache:     store,
		Notifier:  n,
		Recorder:  rec,
		Publisher: pub,
		Hub:       hub,
		Ctx:       ctx,
		now:       time.Now,
	}
}

// RegisterAll registers the evaluation cycle and the whale refresh job.
func (s *Scheduler) RegisterAll(cycleSpec, refreshSpec string) error {
	if _, err := s.Cron.AddFunc(cycleSpec, s.cycleTask); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	if refreshSpec == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(refreshSpec, s.refreshTask); err != nil {
		return fmt.Errorf("register whale refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// Latest returns the most recent completed result, or nil before the first
// cycle. The result is never mutated after publication.
func (s *Scheduler) Latest() *Result {
	return s.latest.Load()
}

// Trigger starts a cycle in the background, cancelling any cycle in flight.
func (s *Scheduler) Trigger() {
	go s.cycleTask()
}

func (s *Scheduler) cycleTask() {
	if _, err := s.RunCycle(); err != nil && !errors.Is(err, ErrSuperseded) {
		log.Error().Err(err).Msg("evaluation cycle failed")
	}
}

func (s *Scheduler) refreshTask() {
	if err := s.RefreshWhales(s.Ctx); err != nil {
		log.Error().Err(err).Msg("whale refresh failed")
	}
}

// RunCycle runs one evaluation cycle and publishes its result. A cycle that
// is overtaken by a newer one is discarded with ErrSuperseded.
func (s *Scheduler) RunCycle() (*Result, error) {
	ctx, cancel := context.WithCancel(s.Ctx)
	defer cancel()

	// The newest sequence always owns s.cancel.
	s.mu.Lock()
	seq := s.seq.Add(1)
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	started := s.now()
	wallets := s.Watchlist.Addresses()
	names := s.Watchlist.Names()
	settings := s.Watchlist.Settings()
	metrics.TrackedWallets.Set(float64(len(wallets)))

	col, err := s.Source.Collect(ctx, wallets, names)
	if err != nil {
		if ctx.Err() != nil && s.Ctx.Err() == nil {
			metrics.CyclesTotal.WithLabelValues("superseded").Inc()
			return nil, ErrSuperseded
		}
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("collect: %w", err)
	}
	if len(wallets) > 0 && len(col.Failed) == len(wallets) {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: all %d wallets failed", ErrNoPositions, len(wallets))
	}

	bankroll := decimal.NewFromFloat(settings.DefaultBalance)
	res := &Result{
		ID:        uuid.NewString(),
		Seq:       seq,
		StartedAt: started,
		Wallets:   len(wallets),
		Settings:  settings,
		Bankroll:  bankroll,
		Snapshot:  col.Snapshot,
		Signals:   consensus.ComputeSignals(col.Snapshot, settings, bankroll),
		Failed:    col.Failed,
	}
	res.Duration = s.now().Sub(started)

	s.mu.Lock()
	if ctx.Err() != nil || s.seq.Load() != seq {
		s.mu.Unlock()
		metrics.CyclesTotal.WithLabelValues("superseded").Inc()
		log.Debug().Uint64("seq", seq).Msg("discarding superseded cycle")
		return nil, ErrSuperseded
	}
	prev := s.latest.Swap(res)
	s.mu.Unlock()

	visible := res.Visible()
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(res.Duration.Seconds())
	metrics.Signals.Set(float64(len(visible)))
	log.Info().
		Str("cycle", res.ID).
		Uint64("seq", seq).
		Int("wallets", res.Wallets).
		Int("failed", len(res.Failed)).
		Int("signals", len(res.Signals)).
		Int("visible", len(visible)).
		Dur("duration", res.Duration).
		Msg("cycle complete")

	s.record(res, col.Rescored)
	s.broadcast(res, visible)
	s.publish(res)
	s.alert(prev, visible)
	return res, nil
}

func (s *Scheduler) record(res *Result, rescored []model.WhaleProfile) {
	if err := s.Recorder.RecordCycle(s.Ctx, &recorder.CycleRecord{
		ID:            res.ID,
		Seq:           res.Seq,
		StartedAt:     res.StartedAt,
		Duration:      res.Duration,
		Wallets:       res.Wallets,
		FailedWallets: len(res.Failed),
		Settings:      res.Settings,
		Signals:       res.Signals,
	}); err != nil {
		log.Error().Err(err).Str("cycle", res.ID).Msg("record cycle")
	}
	if len(rescored) == 0 {
		return
	}
	if err := s.Recorder.RecordWhaleProfiles(s.Ctx, rescored); err != nil {
		log.Error().Err(err).Str("cycle", res.ID).Msg("record whale profiles")
	}
}

func (s *Scheduler) broadcast(res *Result, visible []model.Signal) {
	if s.Hub == nil {
		return
	}
	raw, err := json.Marshal(publish.CycleEvent{
		CycleID:  res.ID,
		Seq:      res.Seq,
		TakenAt:  res.Snapshot.TakenAt,
		Settings: res.Settings,
		Signals:  visible,
	})
	if err != nil {
		log.Error().Err(err).Msg("marshal stream payload")
		return
	}
	s.Hub.Broadcast(raw)
}

func (s *Scheduler) publish(res *Result) {
	if err := s.Publisher.PublishCycle(s.Ctx, &publish.CycleEvent{
		CycleID:  res.ID,
		Seq:      res.Seq,
		TakenAt:  res.Snapshot.TakenAt,
		Settings: res.Settings,
		Signals:  res.Signals,
	}); err != nil {
		log.Error().Err(err).Str("cycle", res.ID).Msg("publish cycle")
	}
}

// alert announces visible signals whose group key was not visible in the
// previous result. The first cycle only establishes the baseline.
func (s *Scheduler) alert(prev *Result, visible []model.Signal) {
	if prev == nil || s.Notifier == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, sig := range prev.Visible() {
		seen[sig.GroupKey] = struct{}{}
	}
	sent := 0
	for _, sig := range visible {
		if _, ok := seen[sig.GroupKey]; ok {
			continue
		}
		if sent == maxAlertsPerCycle {
			log.Warn().Int("limit", maxAlertsPerCycle).Msg("alert limit reached for cycle")
			return
		}
		s.trySend(notifier.FormatSignalAlert(sig))
		sent++
	}
}

// RefreshWhales drops cached whale profiles and starts a cycle that rescores
// every participant.
func (s *Scheduler) RefreshWhales(ctx context.Context) error {
	if err := s.Cache.InvalidateWhales(ctx); err != nil {
		return fmt.Errorf("invalidate whale cache: %w", err)
	}
	log.Info().Msg("whale cache cleared")
	s.Trigger()
	return nil
}

// Status summarizes the latest result.
func (s *Scheduler) Status() notifier.Status {
	res := s.Latest()
	if res == nil {
		return notifier.Status{}
	}
	return notifier.Status{
		CycleID:  res.ID,
		Seq:      res.Seq,
		TakenAt:  res.Snapshot.TakenAt,
		Duration: res.Duration,
		Wallets:  res.Wallets,
		Failed:   len(res.Failed),
		Signals:  len(res.Signals),
		Visible:  len(res.Visible()),
	}
}

// WhaleProfiles returns the scored participants of the latest cycle, falling
// back to the last persisted scores before the first cycle completes.
func (s *Scheduler) WhaleProfiles(ctx context.Context) ([]model.WhaleProfile, error) {
	if res := s.Latest(); res != nil && len(res.Snapshot.Profiles) > 0 {
		return res.Profiles(), nil
	}
	return s.Recorder.LatestWhaleProfiles(ctx)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/signals":
		res := s.Latest()
		if res == nil {
			return notifier.FormatStatus(notifier.Status{})
		}
		return notifier.FormatSignals(res.Visible(), 10)
	case "/whales":
		profiles, err := s.WhaleProfiles(s.Ctx)
		if err != nil {
			log.Error().Err(err).Msg("load whale profiles")
			return "❌ Whale scores unavailable."
		}
		return notifier.FormatWhales(profiles, s.Watchlist.Names(), 15)
	case "/settings":
		return notifier.FormatSettings(s.Watchlist.Settings())
	case "/refresh":
		if err := s.RefreshWhales(s.Ctx); err != nil {
			return fmt.Sprintf("❌ Refresh failed: %v", err)
		}
		return "🔄 Whale scores cleared, rescoring now."
	case "/status":
		return notifier.FormatStatus(s.Status())
	default:
		return "Available commands:\n• /signals\n• /whales\n• /settings\n• /refresh\n• /status"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

// Result is one published evaluation cycle.
type Result struct {
	ID        string
	Seq       uint64
	StartedAt time.Time
	Duration  time.Duration
	Wallets   int
	Settings  model.Settings
	Bankroll  decimal.Decimal
	Snapshot  consensus.Snapshot
	// Signals are ranked but unfiltered.
	Signals []model.Signal
	Failed  []string
}

// Visible applies the cycle's display filters.
func (r *Result) Visible() []model.Signal {
	return consensus.FiltersFrom(r.Settings).Apply(r.Signals)
}

// Aggregates returns the unscored aggregates behind every signal.
func (r *Result) Aggregates() []model.AggregatedSignal {
	out := make([]model.AggregatedSignal, len(r.Signals))
	for i, sig := range r.Signals {
		out[i] = sig.AggregatedSignal
	}
	return out
}

// Profiles returns the cycle's whale profiles, best score first.
func (r *Result) Profiles() []model.WhaleProfile {
	out := make([]model.WhaleProfile, 0, len(r.Snapshot.Profiles))
	for _, p := range r.Snapshot.Profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].Wallet < out[j].Wallet
	})
	return out
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
