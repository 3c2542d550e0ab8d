package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"WhaleConsensus/internal/cache"
	"WhaleConsensus/internal/chain"
	"WhaleConsensus/internal/collector"
	"WhaleConsensus/internal/consensus"
	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/scheduler"
	"WhaleConsensus/internal/watchlist"
)

var (
	jsonOutput bool
	minWallets int
	limit      int
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Run one evaluation cycle and print the ranked signals",
	Args:  cobra.NoArgs,
	RunE:  runSignals,
}

var scoreCmd = &cobra.Command{
	Use:   "score <wallet>",
	Short: "Fetch a wallet's activity and print its whale profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio <wallet>",
	Short: "Validate a wallet's positions against the current whale consensus",
	Args:  cobra.ExactArgs(1),
	RunE:  runPortfolio,
}

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "Manage tracked whale wallets",
}

var walletsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked wallets",
	Args:  cobra.NoArgs,
	RunE:  runWalletsList,
}

var walletsAddCmd = &cobra.Command{
	Use:   "add <address> [name]",
	Short: "Track a wallet",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runWalletsAdd,
}

var walletsRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Stop tracking a wallet",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletsRemove,
}

var walletsRenameCmd = &cobra.Command{
	Use:   "rename <address> <name>",
	Short: "Set a wallet's display name",
	Args:  cobra.ExactArgs(2),
	RunE:  runWalletsRename,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")
	signalsCmd.Flags().IntVar(&minWallets, "min-wallets", 0, "override the minimum wallet filter")
	signalsCmd.Flags().IntVar(&limit, "limit", 25, "maximum rows to print, 0 for all")

	walletsCmd.AddCommand(walletsListCmd, walletsAddCmd, walletsRemoveCmd, walletsRenameCmd)
	rootCmd.AddCommand(signalsCmd, scoreCmd, portfolioCmd, walletsCmd)
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runOnce runs a single cycle without persistence, alerts or streaming.
func runOnce(ctx context.Context, wl *watchlist.Manager, store *cache.Store, col *collector.Collector) (*scheduler.Result, error) {
	sched := scheduler.NewScheduler(ctx, col, wl, store, nil, nil, nil, nil)
	return sched.RunCycle()
}

func runSignals(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	if len(wl.Addresses()) == 0 {
		return fmt.Errorf("no wallets tracked; add one with `consensus wallets add`")
	}
	store := openCache(ctx, cfg)
	defer store.Close()
	res, err := runOnce(ctx, wl, store, newCollector(cfg, store))
	if err != nil {
		return err
	}

	filters := consensus.FiltersFrom(res.Settings)
	if minWallets > 0 {
		filters.MinWallets = minWallets
	}
	visible := filters.Apply(res.Signals)
	if limit > 0 && len(visible) > limit {
		visible = visible[:limit]
	}
	if jsonOutput {
		return printJSON(visible)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMARKET\tOUTCOME\tSIDE\tWHALES\tCONVICTION\tPRICE\tALPHA\tSTRATEGY\tSIZE")
	for i, s := range visible {
		strategy := "-"
		if s.Sizing != nil {
			strategy = s.Sizing.Strategy()
		} else if s.SizingError != "" {
			strategy = "ERROR"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t$%.0f\t%.3f\t%d\t%s\t$%s\n",
			i+1, truncate(s.MarketName, 48), s.OutcomeLabel, s.Direction, s.WalletCount,
			s.TotalConviction, s.CurrentPrice, s.AlphaScore(), strategy, s.RecommendedSize().StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d signals shown (cycle %s, %d wallets, %d failed)\n",
		len(visible), len(res.Signals), res.ID, res.Wallets, len(res.Failed))
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	wallet, err := watchlist.NormalizeAddress(args[0])
	if err != nil {
		return err
	}
	store := openCache(ctx, cfg)
	defer store.Close()
	profile, err := newCollector(cfg, store).ScoreWallet(ctx, wallet)
	if err != nil {
		return fmt.Errorf("score %s: %w", wallet, err)
	}
	if jsonOutput {
		return printJSON(profile)
	}
	fmt.Printf("%s  %d  %s  tags=%v  trades=%d\n", profile.Wallet, profile.TotalScore, profile.Tier, profile.Tags, profile.TradeCount)
	for _, p := range profile.Pillars {
		fmt.Printf("  %-10s %3d  %s\n", p.Name, p.Score, p.Commentary)
	}
	return nil
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	wallet, err := watchlist.NormalizeAddress(args[0])
	if err != nil {
		return err
	}
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}

	store := openCache(ctx, cfg)
	defer store.Close()
	col := newCollector(cfg, store)

	var aggs []model.AggregatedSignal
	if len(wl.Addresses()) > 0 {
		res, err := runOnce(ctx, wl, store, col)
		if err != nil {
			return err
		}
		aggs = res.Aggregates()
	}

	positions, err := col.CollectWallet(ctx, wallet)
	if err != nil {
		return err
	}

	balance := decimal.Zero
	if cfg.Chain.RPCURL != "" {
		if bc, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.USDCAddress); err != nil {
			log.Warn().Err(err).Msg("polygon rpc unavailable")
		} else {
			defer bc.Close()
			if b, err := bc.USDCBalance(ctx, wallet); err != nil {
				log.Warn().Err(err).Msg("usdc balance unavailable")
			} else {
				balance = b
			}
		}
	}

	pf := consensus.BuildPortfolio(wallet, positions, aggs, balance)
	if jsonOutput {
		return printJSON(pf)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKET\tOUTCOME\tSIDE\tSIZE\tENTRY\tNOW\tPNL%\tSTATUS\tWHALES")
	for _, p := range pf.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t$%.2f\t%.3f\t%.3f\t%+.1f\t%s\t%d\n",
			truncate(p.MarketName, 48), p.OutcomeLabel, p.Direction, p.SizeUSDC,
			p.EntryPrice, p.CurrentPrice, p.PnLPercent, p.Status, p.WhaleCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\ninvested $%s  pnl $%s  balance $%s  validated %d  divergent %d\n",
		pf.TotalInvested.StringFixed(2), pf.TotalPnL.StringFixed(2), pf.USDCBalance.StringFixed(2),
		pf.ValidatedCount, pf.DivergenceCount)
	return nil
}

func runWalletsList(cmd *cobra.Command, args []string) error {
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	entries := wl.Wallets()
	if jsonOutput {
		return printJSON(entries)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tADDED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Address, e.Name, e.AddedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func runWalletsAdd(cmd *cobra.Command, args []string) error {
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	name := ""
	if len(args) == 2 {
		name = args[1]
	}
	e, err := wl.Add(args[0], name)
	if err != nil {
		return err
	}
	fmt.Printf("tracking %s (%s)\n", e.Address, e.Name)
	return nil
}

func runWalletsRemove(cmd *cobra.Command, args []string) error {
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	if err := wl.Remove(args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}

func runWalletsRename(cmd *cobra.Command, args []string) error {
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	return wl.Rename(args[0], args[1])
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
