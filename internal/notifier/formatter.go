package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"WhaleConsensus/internal/model"
)

// Status is the engine state shown by /status.
type Status struct {
	CycleID  string
	Seq      uint64
	TakenAt  time.Time
	Duration time.Duration
	Wallets  int
	Failed   int
	Signals  int
	Visible  int
}

// FormatSignalAlert formats a newly appeared signal.
func FormatSignalAlert(s model.Signal) string {
	var b strings.Builder
	b.WriteString("🐋 <b>New whale consensus</b>\n\n")
	writeSignal(&b, s)
	if len(s.Consensus.Contributors) > 0 {
		b.WriteString("\nWhales:\n")
		for _, c := range s.Consensus.Contributors {
			b.WriteString(fmt.Sprintf("  • %s %d (%s)\n", html.EscapeString(displayName(c)), c.Score, c.Tier))
		}
	}
	if s.MarketSlug != "" {
		b.WriteString(fmt.Sprintf("\n<a href=\"https://polymarket.com/event/%s\">Open market</a>", html.EscapeString(s.MarketSlug)))
	}
	return b.String()
}

// FormatSignals formats the top ranked signals.
func FormatSignals(signals []model.Signal, limit int) string {
	if len(signals) == 0 {
		return "📭 No signals match the current filters."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Whale signals</b> (%d)\n\n", len(signals)))
	for i, s := range signals {
		if limit > 0 && i >= limit {
			b.WriteString(fmt.Sprintf("… and %d more\n", len(signals)-limit))
			break
		}
		b.WriteString(fmt.Sprintf("<b>%d.</b> ", i+1))
		writeSignal(&b, s)
		b.WriteString("\n")
	}
	return b.String()
}

func writeSignal(b *strings.Builder, s model.Signal) {
	b.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(s.MarketName)))
	b.WriteString(fmt.Sprintf("%s %s @ %.1f¢ (entry %.1f¢)\n",
		html.EscapeString(s.OutcomeLabel), s.Direction, s.CurrentPrice*100, s.AvgEntryPrice*100))
	b.WriteString(fmt.Sprintf("Whales: %d | Conviction: $%.0f | Alpha: %d\n",
		s.WalletCount, s.TotalConviction, s.AlphaScore()))
	switch r := s.Sizing.(type) {
	case *model.KellyResult:
		b.WriteString(fmt.Sprintf("Size: $%s (Kelly %.1f%%)\n", r.RecommendedSize.StringFixed(2), r.CappedPct*100))
	case *model.YieldResult:
		b.WriteString(fmt.Sprintf("Size: $%s (yield %.0f%%)\n", r.RecommendedSize.StringFixed(2), r.FixedPct*100))
	case *model.NoBet:
		b.WriteString(fmt.Sprintf("No bet: %s\n", html.EscapeString(r.Reason)))
	default:
		if s.SizingError != "" {
			b.WriteString(fmt.Sprintf("⚠️ %s\n", html.EscapeString(s.SizingError)))
		}
	}
}

func displayName(c model.Contributor) string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Address) > 10 {
		return c.Address[:10] + "..."
	}
	return c.Address
}

// FormatWhales formats whale profiles, best first.
func FormatWhales(profiles []model.WhaleProfile, names map[string]string, limit int) string {
	if len(profiles) == 0 {
		return "🐋 No whale scores yet."
	}
	var b strings.Builder
	b.WriteString("🐋 <b>Whale scores</b>\n\n")
	for i, p := range profiles {
		if limit > 0 && i >= limit {
			break
		}
		name := displayName(model.Contributor{Address: p.Wallet, Name: names[p.Wallet]})
		b.WriteString(fmt.Sprintf("%s: <b>%d</b> %s", html.EscapeString(name), p.TotalScore, p.Tier))
		if len(p.Tags) > 0 {
			b.WriteString(" [" + strings.Join(p.Tags, ",") + "]")
		}
		b.WriteString(fmt.Sprintf("\n  ROI %d · Disc %d · Prec %d · Timing %d\n",
			p.ROIScore, p.DisciplineScore, p.PrecisionScore, p.TimingScore))
	}
	return b.String()
}

// FormatSettings formats the current engine settings.
func FormatSettings(s model.Settings) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Engine settings</b>\n\n")
	b.WriteString(fmt.Sprintf("Kelly multiplier: %.2f\n", s.KellyMultiplier))
	b.WriteString(fmt.Sprintf("Max risk cap: %.1f%%\n", s.MaxRiskCap*100))
	b.WriteString(fmt.Sprintf("Min wallets: %d\n", s.MinWallets))
	b.WriteString(fmt.Sprintf("Hide lottery: %v\n", s.HideLottery))
	b.WriteString(fmt.Sprintf("Longshot tolerance: %.2f\n", s.LongshotTolerance))
	b.WriteString(fmt.Sprintf("Trend mode: %v\n", s.TrendMode))
	b.WriteString(fmt.Sprintf("Yield mode: ≥%.0f¢, %d+ whales, %.0f%% fixed\n",
		s.YieldTriggerPrice*100, s.YieldMinWhales, s.YieldFixedPct*100))
	b.WriteString(fmt.Sprintf("Min whale tier: %s\n", s.MinWhaleTier))
	b.WriteString(fmt.Sprintf("Ignore bagholders: %v\n", s.IgnoreBagholders))
	b.WriteString(fmt.Sprintf("Consensus boost: %v\n", s.ConsensusBoost))
	b.WriteString(fmt.Sprintf("Default balance: $%.0f\n", s.DefaultBalance))
	return b.String()
}

// FormatStatus formats the latest cycle summary.
func FormatStatus(st Status) string {
	if st.CycleID == "" {
		return "⏳ No cycle has completed yet."
	}
	var b strings.Builder
	b.WriteString("📡 <b>Engine status</b>\n\n")
	id := st.CycleID
	if len(id) > 8 {
		id = id[:8]
	}
	b.WriteString(fmt.Sprintf("Cycle #%d (%s)\n", st.Seq, id))
	b.WriteString(fmt.Sprintf("Taken: %s (%s)\n", st.TakenAt.UTC().Format("2006-01-02 15:04:05"), st.Duration.Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("Wallets: %d (%d failed)\n", st.Wallets, st.Failed))
	b.WriteString(fmt.Sprintf("Signals: %d visible of %d\n", st.Visible, st.Signals))
	return b.String()
}
