package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"WhaleConsensus/internal/collector"
	"WhaleConsensus/internal/consensus"
	"WhaleConsensus/internal/model"
	"WhaleConsensus/internal/watchlist"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":          "healthy",
		"service":         "whale-consensus",
		"tracked_wallets": len(s.Watchlist.Addresses()),
	}
	if res := s.Engine.Latest(); res != nil {
		resp["cycle_id"] = res.ID
		resp["cycle_seq"] = res.Seq
		resp["taken_at"] = res.Snapshot.TakenAt
		resp["failed_wallets"] = len(res.Failed)
	}
	if s.Hub != nil {
		resp["ws_clients"] = s.Hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

type signalsResponse struct {
	CycleID string         `json:"cycle_id,omitempty"`
	Seq     uint64         `json:"seq,omitempty"`
	TakenAt *time.Time     `json:"taken_at,omitempty"`
	Count   int            `json:"count"`
	Signals []model.Signal `json:"signals"`
}

// signals serves the latest ranked signals. Query parameters override the
// stored settings; overrides that change scoring or sizing re-run the
// computation on the cycle's snapshot rather than refetching.
func (s *Server) signals(w http.ResponseWriter, r *http.Request) {
	res := s.Engine.Latest()
	if res == nil {
		writeJSON(w, http.StatusOK, signalsResponse{Signals: []model.Signal{}})
		return
	}

	q := r.URL.Query()
	patch, err := patchFromQuery(q)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	settings := res.Settings
	patch.apply(&settings)
	if err := settings.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	bankroll := res.Bankroll
	if raw := firstOf(q, "balance", "user_balance"); raw != "" {
		bankroll, err = decimal.NewFromString(raw)
		if err != nil || bankroll.IsNegative() {
			writeError(w, "balance must be a non-negative number", http.StatusBadRequest)
			return
		}
	}

	signals := res.Signals
	if needsRecompute(res.Settings, settings) || !bankroll.Equal(res.Bankroll) {
		signals = consensus.ComputeSignals(res.Snapshot, settings, bankroll)
	}
	visible := consensus.FiltersFrom(settings).Apply(signals)
	if visible == nil {
		visible = []model.Signal{}
	}
	takenAt := res.Snapshot.TakenAt
	writeJSON(w, http.StatusOK, signalsResponse{
		CycleID: res.ID,
		Seq:     res.Seq,
		TakenAt: &takenAt,
		Count:   len(visible),
		Signals: visible,
	})
}

// needsRecompute reports whether b differs from a in anything beyond the
// display filters.
func needsRecompute(a, b model.Settings) bool {
	a.MinWallets, b.MinWallets = 0, 0
	a.HideLottery, b.HideLottery = false, false
	a.MinWhaleTier, b.MinWhaleTier = "", ""
	return a != b
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	positions, err := s.Wallets.CollectWallet(ctx, wallet)
	if err != nil {
		var we *collector.WalletError
		if errors.As(err, &we) {
			writeError(w, "positions unavailable", http.StatusBadGateway)
			return
		}
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}

	balance := decimal.Zero
	if s.Balances != nil {
		if b, err := s.Balances.USDCBalance(ctx, wallet); err != nil {
			log.Warn().Err(err).Str("wallet", wallet).Msg("usdc balance unavailable")
		} else {
			balance = b
		}
	}

	var aggs []model.AggregatedSignal
	if res := s.Engine.Latest(); res != nil {
		aggs = res.Aggregates()
	}
	writeJSON(w, http.StatusOK, consensus.BuildPortfolio(wallet, positions, aggs, balance))
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	if s.Balances == nil {
		writeError(w, "chain client not configured", http.StatusServiceUnavailable)
		return
	}
	bal, err := s.Balances.USDCBalance(r.Context(), wallet)
	if err != nil {
		log.Error().Err(err).Str("wallet", wallet).Msg("usdc balance")
		writeError(w, "balance lookup failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":       wallet,
		"usdc_balance": bal,
		"currency":     "USDC",
		"chain":        "Polygon",
	})
}

// walletParam reads ?wallet=, falling back to the connected wallet.
func (s *Server) walletParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("wallet")
	if raw == "" {
		raw = s.Watchlist.ConnectedWallet()
	}
	if raw == "" {
		writeError(w, "wallet is required", http.StatusBadRequest)
		return "", false
	}
	wallet, err := watchlist.NormalizeAddress(raw)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return wallet, true
}

func (s *Server) listWallets(w http.ResponseWriter, r *http.Request) {
	entries := s.Watchlist.Wallets()
	writeJSON(w, http.StatusOK, map[string]any{
		"wallets": s.Watchlist.Addresses(),
		"names":   s.Watchlist.Names(),
		"entries": entries,
		"count":   len(entries),
	})
}

type walletRequest struct {
	Action  string `json:"action"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

func (s *Server) configureWallets(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var message string
	switch req.Action {
	case "", "add":
		e, err := s.Watchlist.Add(req.Address, req.Name)
		if err != nil {
			writeWatchlistError(w, err)
			return
		}
		message = fmt.Sprintf("Wallet %s added", e.Address)
	case "remove":
		if err := s.Watchlist.Remove(req.Address); err != nil {
			writeWatchlistError(w, err)
			return
		}
		message = fmt.Sprintf("Wallet %s removed", req.Address)
	default:
		writeError(w, "action must be add or remove", http.StatusBadRequest)
		return
	}
	s.Engine.Trigger()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"wallets": s.Watchlist.Addresses(),
	})
}

func (s *Server) removeWallet(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if err := s.Watchlist.Remove(addr); err != nil {
		writeWatchlistError(w, err)
		return
	}
	s.Engine.Trigger()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"wallets": s.Watchlist.Addresses(),
	})
}

func (s *Server) renameWallet(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.Watchlist.Rename(addr, req.Name); err != nil {
		writeWatchlistError(w, err)
		return
	}
	norm, _ := watchlist.NormalizeAddress(addr)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"address": norm,
		"name":    req.Name,
	})
}

func writeWatchlistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrInvalidAddress):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, watchlist.ErrDuplicate):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, watchlist.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("watchlist update")
		writeError(w, "failed to update watchlist", http.StatusInternalServerError)
	}
}

type whaleScore struct {
	model.WhaleProfile
	Name string `json:"name,omitempty"`
}

func (s *Server) whaleScores(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.Engine.WhaleProfiles(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("load whale profiles")
		writeError(w, "failed to load whale scores", http.StatusInternalServerError)
		return
	}
	names := s.Watchlist.Names()
	out := make([]whaleScore, len(profiles))
	for i, p := range profiles {
		out[i] = whaleScore{WhaleProfile: p, Name: names[p.Wallet]}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) refreshWhales(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RefreshWhales(r.Context()); err != nil {
		log.Error().Err(err).Msg("refresh whale scores")
		writeError(w, "refresh failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "whale scores refreshing"})
}

type settingsResponse struct {
	model.Settings
	ConnectedWallet string `json:"connected_wallet,omitempty"`
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{
		Settings:        s.Watchlist.Settings(),
		ConnectedWallet: s.Watchlist.ConnectedWallet(),
	})
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.ConnectedWallet != nil && *patch.ConnectedWallet != "" {
		if _, err := watchlist.NormalizeAddress(*patch.ConnectedWallet); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	updated, err := s.Watchlist.UpdateSettings(patch.apply)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if patch.ConnectedWallet != nil {
		if err := s.Watchlist.SetConnectedWallet(*patch.ConnectedWallet); err != nil {
			writeWatchlistError(w, err)
			return
		}
	}
	s.Engine.Trigger()
	writeJSON(w, http.StatusOK, settingsResponse{
		Settings:        updated,
		ConnectedWallet: s.Watchlist.ConnectedWallet(),
	})
}

// settingsPatch is a partial settings update; nil fields are left unchanged.
type settingsPatch struct {
	KellyMultiplier   *float64 `json:"kelly_multiplier"`
	MaxRiskCap        *float64 `json:"max_risk_cap"`
	MinWallets        *int     `json:"min_wallets"`
	HideLottery       *bool    `json:"hide_lottery"`
	LongshotTolerance *float64 `json:"longshot_tolerance"`
	TrendMode         *bool    `json:"trend_mode"`
	YieldTriggerPrice *float64 `json:"yield_trigger_price"`
	YieldFixedPct     *float64 `json:"yield_fixed_pct"`
	YieldMinWhales    *int     `json:"yield_min_whales"`
	MinWhaleTier      *string  `json:"min_whale_tier"`
	IgnoreBagholders  *bool    `json:"ignore_bagholders"`
	ConsensusBoost    *bool    `json:"consensus_boost"`
	DefaultBalance    *float64 `json:"default_balance"`
	ConnectedWallet   *string  `json:"connected_wallet"`
}

func (p settingsPatch) apply(s *model.Settings) {
	setIf(&s.KellyMultiplier, p.KellyMultiplier)
	setIf(&s.MaxRiskCap, p.MaxRiskCap)
	setIf(&s.MinWallets, p.MinWallets)
	setIf(&s.HideLottery, p.HideLottery)
	setIf(&s.LongshotTolerance, p.LongshotTolerance)
	setIf(&s.TrendMode, p.TrendMode)
	setIf(&s.YieldTriggerPrice, p.YieldTriggerPrice)
	setIf(&s.YieldFixedPct, p.YieldFixedPct)
	setIf(&s.YieldMinWhales, p.YieldMinWhales)
	setIf(&s.MinWhaleTier, p.MinWhaleTier)
	setIf(&s.IgnoreBagholders, p.IgnoreBagholders)
	setIf(&s.ConsensusBoost, p.ConsensusBoost)
	setIf(&s.DefaultBalance, p.DefaultBalance)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// patchFromQuery reads settings overrides from query parameters.
func patchFromQuery(q url.Values) (settingsPatch, error) {
	var p settingsPatch
	var err error
	floats := map[string]**float64{
		"kelly_multiplier":    &p.KellyMultiplier,
		"max_risk_cap":        &p.MaxRiskCap,
		"longshot_tolerance":  &p.LongshotTolerance,
		"yield_trigger_price": &p.YieldTriggerPrice,
		"yield_fixed_pct":     &p.YieldFixedPct,
	}
	for key, dst := range floats {
		if *dst, err = parseQuery(q, key, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) }); err != nil {
			return p, err
		}
	}
	ints := map[string]**int{
		"min_wallets":      &p.MinWallets,
		"yield_min_whales": &p.YieldMinWhales,
	}
	for key, dst := range ints {
		if *dst, err = parseQuery(q, key, strconv.Atoi); err != nil {
			return p, err
		}
	}
	bools := map[string]**bool{
		"hide_lottery":      &p.HideLottery,
		"trend_mode":        &p.TrendMode,
		"ignore_bagholders": &p.IgnoreBagholders,
		"consensus_boost":   &p.ConsensusBoost,
	}
	for key, dst := range bools {
		if *dst, err = parseQuery(q, key, strconv.ParseBool); err != nil {
			return p, err
		}
	}
	if v := q.Get("min_whale_tier"); v != "" {
		p.MinWhaleTier = &v
	}
	return p, nil
}

func parseQuery[T any](q url.Values, key string, parse func(string) (T, error)) (*T, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return &v, nil
}
