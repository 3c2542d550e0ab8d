package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"WhaleConsensus/internal/model"
)

// SQLiteRecorder persists cycles, signals and whale scores to SQLite.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read history while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id             TEXT PRIMARY KEY,
			seq            INTEGER NOT NULL,
			timestamp      INTEGER NOT NULL,
			duration_ms    INTEGER,
			wallet_count   INTEGER,
			failed_wallets INTEGER,
			signal_count   INTEGER,
			settings       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id         TEXT NOT NULL REFERENCES cycles(id),
			rank             INTEGER,
			group_key        TEXT,
			market_id        TEXT,
			market_name      TEXT,
			outcome_label    TEXT,
			direction        TEXT,
			category         TEXT,
			wallet_count     INTEGER,
			total_conviction REAL,
			avg_entry_price  REAL,
			current_price    REAL,
			alpha_score      INTEGER,
			consensus_score  INTEGER,
			strategy         TEXT,
			recommended_size TEXT,
			sizing_error     TEXT,
			payload          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_cycle ON signals(cycle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_market ON signals(market_id)`,

		`CREATE TABLE IF NOT EXISTS whale_scores (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			wallet           TEXT NOT NULL,
			roi_score        INTEGER,
			discipline_score INTEGER,
			precision_score  INTEGER,
			timing_score     INTEGER,
			total_score      INTEGER,
			tier             TEXT,
			tags             TEXT,
			trade_count      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_whale_wallet ON whale_scores(wallet, id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(ctx context.Context, rec *CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings, err := json.Marshal(rec.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO cycles
		(id, seq, timestamp, duration_ms, wallet_count, failed_wallets, signal_count, settings)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, int64(rec.Seq), rec.StartedAt.Unix(), rec.Duration.Milliseconds(),
		rec.Wallets, rec.FailedWallets, len(rec.Signals), string(settings),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO signals
		(cycle_id, rank, group_key, market_id, market_name, outcome_label, direction, category,
		 wallet_count, total_conviction, avg_entry_price, current_price,
		 alpha_score, consensus_score, strategy, recommended_size, sizing_error, payload)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range rec.Signals {
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode signal %s: %w", s.GroupKey, err)
		}
		strategy := ""
		if s.Sizing != nil {
			strategy = s.Sizing.Strategy()
		}
		_, err = stmt.ExecContext(ctx,
			rec.ID, i+1, s.GroupKey, s.MarketID, s.MarketName, s.OutcomeLabel,
			string(s.Direction), string(s.Category),
			s.WalletCount, s.TotalConviction, s.AvgEntryPrice, s.CurrentPrice,
			s.Alpha.Total, s.Consensus.WeightedScore, strategy,
			s.RecommendedSize().StringFixed(2), s.SizingError, string(payload),
		)
		if err != nil {
			return fmt.Errorf("insert signal %s: %w", s.GroupKey, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordWhaleProfiles(ctx context.Context, profiles []model.WhaleProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, p := range profiles {
		_, err := tx.ExecContext(ctx, `INSERT INTO whale_scores
			(timestamp, wallet, roi_score, discipline_score, precision_score, timing_score,
			 total_score, tier, tags, trade_count)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			now, model.NormalizeWallet(p.Wallet), p.ROIScore, p.DisciplineScore,
			p.PrecisionScore, p.TimingScore, p.TotalScore, string(p.Tier),
			strings.Join(p.Tags, ","), p.TradeCount,
		)
		if err != nil {
			return fmt.Errorf("insert whale score %s: %w", p.Wallet, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LatestWhaleProfiles(ctx context.Context) ([]model.WhaleProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT wallet, roi_score, discipline_score, precision_score,
			timing_score, total_score, tier, tags, trade_count
		FROM whale_scores w
		WHERE id = (SELECT MAX(id) FROM whale_scores WHERE wallet = w.wallet)
		ORDER BY total_score DESC, wallet ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WhaleProfile
	for rows.Next() {
		var p model.WhaleProfile
		var tier, tags string
		if err := rows.Scan(&p.Wallet, &p.ROIScore, &p.DisciplineScore, &p.PrecisionScore,
			&p.TimingScore, &p.TotalScore, &tier, &tags, &p.TradeCount); err != nil {
			return nil, err
		}
		p.Tier = model.Tier(tier)
		p.Tags = []string{}
		if tags != "" {
			p.Tags = strings.Split(tags, ",")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, seq, timestamp, duration_ms, wallet_count,
			failed_wallets, signal_count
		FROM cycles ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var c CycleSummary
		var seq, ts, ms int64
		if err := rows.Scan(&c.ID, &seq, &ts, &ms, &c.Wallets, &c.FailedWallets, &c.SignalCount); err != nil {
			return nil, err
		}
		c.Seq = uint64(seq)
		c.StartedAt = time.Unix(ts, 0).UTC()
		c.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
