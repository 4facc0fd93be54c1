package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/pattern"
	"github.com/exportwise/advisor-cli/internal/profile"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation and feedback HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(env.Registry, promhttp.HandlerOpts{}))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/recommendations/market", handleMarketRecommendations(env))
			r.Post("/recommendations/compliance", handleComplianceRecommendations(env))
			r.Post("/feedback", handleFeedback(env))
			r.Post("/profile/diff", handleProfileDiff())
			r.Get("/patterns", handleListPatterns(env))
			r.Get("/patterns/{id}", handleGetPattern(env))
		})

		// Periodic maintenance: pattern consolidation and regulatory change
		// monitoring, rate-limited so scans never crowd out request traffic.
		go maintenanceLoop(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func handleMarketRecommendations(env *runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BusinessID      string                       `json:"business_id"`
			Profile         *model.BusinessProfile       `json:"profile"`
			Recommendations []model.MarketRecommendation `json:"recommendations"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Profile == nil {
			writeError(w, http.StatusBadRequest, "profile is required")
			return
		}

		recs, apps := env.Learning.EnhanceMarketRecommendations(r.Context(), req.BusinessID, req.Profile, req.Recommendations)
		writeJSON(w, http.StatusOK, map[string]any{
			"recommendations": recs,
			"applications":    apps,
		})
	}
}

func handleComplianceRecommendations(env *runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BusinessID      string                           `json:"business_id"`
			Profile         *model.BusinessProfile           `json:"profile"`
			Recommendations []model.ComplianceRecommendation `json:"recommendations"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Profile == nil {
			writeError(w, http.StatusBadRequest, "profile is required")
			return
		}

		recs, apps := env.Learning.EnhanceComplianceRecommendations(r.Context(), req.BusinessID, req.Profile, req.Recommendations)
		writeJSON(w, http.StatusOK, map[string]any{
			"recommendations": recs,
			"applications":    apps,
		})
	}
}

func handleFeedback(env *runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BusinessID    string `json:"business_id"`
			ApplicationID string `json:"application_id"`
			Helpful       bool   `json:"helpful"`
			Details       string `json:"details,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ApplicationID == "" {
			writeError(w, http.StatusBadRequest, "application_id is required")
			return
		}

		if err := env.Learning.ProcessFeedback(r.Context(), req.BusinessID, req.ApplicationID, req.Helpful, req.Details); err != nil {
			if eris.Is(err, pattern.ErrNotFound) {
				writeError(w, http.StatusNotFound, "application not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "feedback processing failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
	}
}

func handleProfileDiff() http.HandlerFunc {
	tracker := profile.NewTracker(cfg.Profile.Weights)
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Previous *model.BusinessProfile `json:"previous"`
			Current  *model.BusinessProfile `json:"current"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Previous == nil || req.Current == nil {
			writeError(w, http.StatusBadRequest, "previous and current profiles are required")
			return
		}
		writeJSON(w, http.StatusOK, tracker.Diff(req.Previous, req.Current))
	}
}

func handleListPatterns(env *runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch kind := r.URL.Query().Get("kind"); kind {
		case "", "export":
			writeJSON(w, http.StatusOK, env.Exports.GetAllPatterns(r.Context()))
		case "regulatory":
			writeJSON(w, http.StatusOK, env.Regulatory.GetAllPatterns(r.Context()))
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown pattern kind %q", kind))
		}
	}
}

func handleGetPattern(env *runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if p, err := env.Exports.Get(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, p)
			return
		}
		p, err := env.Regulatory.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "pattern not found")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// maintenanceLoop periodically consolidates overlapping patterns and refreshes
// regulatory change-frequency patterns for every market seen in outcomes.
func maintenanceLoop(ctx context.Context, env *runtime) {
	interval := time.Duration(cfg.Learning.ConsolidateIntervalMins) * time.Minute
	if interval <= 0 {
		return
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Learning.MonitorRatePerMin/60), 1)
	window := time.Duration(cfg.Learning.MonitorWindowDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		report := env.Learning.ConsolidatePatterns(ctx)
		zap.L().Info("consolidation pass complete",
			zap.Int("export_merged", report.ExportMerged),
			zap.Int("regulatory_merged", report.RegulatoryMerged),
		)

		for _, market := range knownMarkets(ctx, env) {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			env.Regulatory.MonitorRegulatoryChanges(ctx, []string{market}, nil, window)
		}
	}
}

// knownMarkets collects the distinct markets across live export patterns.
func knownMarkets(ctx context.Context, env *runtime) []string {
	seen := map[string]struct{}{}
	var markets []string
	for _, p := range env.Exports.GetAllPatterns(ctx) {
		for _, m := range p.Markets {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			markets = append(markets, m)
		}
	}
	return markets
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
