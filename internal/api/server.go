// Package api serves the consensus engine over HTTP and websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"WhaleConsensus/internal/metrics"
	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/scheduler"
	"WhaleConsensus/internal/watchlist"
)

// Engine is the scheduler surface the API reads from and pokes.
type Engine interface {
	Latest() *scheduler.Result
	Trigger()
	RefreshWhales(ctx context.Context) error
	WhaleProfiles(ctx context.Context) ([]model.WhaleProfile, error)
}

// WalletSource fetches one wallet's netted positions.
type WalletSource interface {
	CollectWallet(ctx context.Context, wallet string) ([]model.NettedPosition, error)
}

// BalanceSource looks up a wallet's on-chain USDC balance.
type BalanceSource interface {
	USDCBalance(ctx context.Context, wallet string) (decimal.Decimal, error)
}

// Server holds the handler dependencies. Balances and Hub may be nil.
type Server struct {
	Engine    Engine
	Watchlist *watchlist.Manager
	Wallets   WalletSource
	Balances  BalanceSource
	Hub       *Hub
}

// NewServer creates a new Server.
func NewServer(engine Engine, wl *watchlist.Manager, wallets WalletSource, balances BalanceSource, hub *Hub) *Server {
	return &Server{
		Engine:    engine,
		Watchlist: wl,
		Wallets:   wallets,
		Balances:  balances,
		Hub:       hub,
	}
}

// Router builds the chi router with middleware and every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// CORS for the dashboard frontend.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.Hub != nil {
			r.Get("/ws", s.Hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/health", s.health)
			r.Get("/signals", s.signals)

			r.Get("/user/portfolio", s.portfolio)
			r.Get("/user/balance", s.balance)

			r.Get("/config/wallets", s.listWallets)
			r.Post("/config/wallets", s.configureWallets)
			r.Delete("/config/wallets/{address}", s.removeWallet)
			r.Put("/config/wallets/{address}/name", s.renameWallet)

			r.Get("/whale-scores", s.whaleScores)
			r.Post("/whale-scores/refresh", s.refreshWhales)

			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.putSettings)
		})
	})
	return r
}

// requestLogger logs each request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
