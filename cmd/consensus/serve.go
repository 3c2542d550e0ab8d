package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"WhaleConsensus/internal/api"
	"WhaleConsensus/internal/chain"
	"WhaleConsensus/internal/notifier"
	"WhaleConsensus/internal/publish"
	"WhaleConsensus/internal/recorder"
	"WhaleConsensus/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, HTTP API and Telegram bot",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info().Msg("whale consensus starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	log.Info().Int("wallets", len(wl.Addresses())).Msg("watchlist loaded")

	store := openCache(ctx, cfg)
	defer store.Close()
	col := newCollector(cfg, store)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	var pub publish.Publisher = publish.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := publish.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("init kafka publisher: %w", err)
		}
		pub = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publishing enabled")
	}
	defer pub.Close()

	var balances api.BalanceSource
	if cfg.Chain.RPCURL != "" {
		bc, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.USDCAddress)
		if err != nil {
			log.Warn().Err(err).Msg("polygon rpc unavailable, balances disabled")
		} else {
			balances = bc
			defer bc.Close()
		}
	}

	var tn *notifier.TelegramNotifier
	var sender scheduler.Sender
	if cfg.TelegramEnabled() {
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram unavailable, alerts disabled")
		} else {
			sender = tn
		}
	}

	hub := api.NewHub()
	go hub.Run(ctx)

	sched := scheduler.NewScheduler(ctx, col, wl, store, sender, rec, pub, hub)
	if err := sched.RegisterAll(cfg.Schedule.Cycle, cfg.Schedule.WhaleRefresh); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}
	if cfg.Schedule.RunOnStart {
		log.Info().Msg("RUN_ON_START enabled, running a cycle now")
		sched.Trigger()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(sched, wl, col, balances, hub).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().Msg("whale consensus is running, press Ctrl+C to stop")
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	fmt.Fprintln(os.Stderr, "whale consensus stopped")
	return nil
}
