// Package main runs the long-lived research server: the pipeline on a cron
// schedule, a WebSocket progress feed, Prometheus metrics and a JSON
// leaderboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"formula-lab/internal/config"
	"formula-lab/internal/dashboard"
	"formula-lab/internal/domain"
	"formula-lab/internal/logging"
	"formula-lab/internal/observability"
	"formula-lab/internal/orchestrator"
	"formula-lab/internal/storage"
)

// Server runs scheduled pipelines and serves their state.
type Server struct {
	cfg     *config.Config
	source  storage.MarketDataSource
	results storage.ResultStore
	hub     *dashboard.Hub
	logger  *zap.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastPipelineRun time.Time
	lastError       string
	pipelineRunning bool
	pipelineRuns    int
}

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	listen := flag.String("listen", "", "HTTP address (overrides server.listen)")
	runNow := flag.Bool("run-now", false, "Run the pipeline once at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development).Named("server")
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, closeSource, err := orchestrator.OpenSource(ctx, cfg)
	if err != nil {
		logger.Fatal("open data source", zap.String("source", cfg.Data.Source), zap.Error(err))
	}
	defer closeSource()

	results, closeResults, err := orchestrator.OpenResultStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open result store", zap.Error(err))
	}
	defer closeResults()

	s := &Server{
		cfg:     cfg,
		source:  source,
		results: results,
		hub:     dashboard.NewHub(logger.Named("ws")),
		logger:  logger,
		started: time.Now(),
	}
	go s.hub.Run(ctx)

	// Schedule
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Server.SearchCron, func() { s.runPipeline(ctx) }); err != nil {
		logger.Fatal("invalid search cron", zap.String("spec", cfg.Server.SearchCron), zap.Error(err))
	}
	c.Start()
	logger.Info("pipeline scheduled", zap.String("cron", cfg.Server.SearchCron))

	if *runNow {
		go s.runPipeline(ctx)
	}

	srv := &http.Server{Addr: cfg.Server.Listen, Handler: s.routes()}
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Server.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	select {
	case <-c.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop within 30s")
	}
	logger.Info("shutdown complete")
}

// runPipeline executes one full pipeline run and publishes its outcome.
func (s *Server) runPipeline(ctx context.Context) {
	s.mu.Lock()
	if s.pipelineRunning {
		s.mu.Unlock()
		s.logger.Info("pipeline already running, skipping")
		return
	}
	s.pipelineRunning = true
	s.mu.Unlock()

	start := time.Now()
	s.hub.Publish(dashboard.MsgTypeStatus, map[string]string{"state": "running"})

	orch := orchestrator.New(orchestrator.Options{
		Config:   s.cfg,
		Source:   s.source,
		Results:  s.results,
		Progress: s.hub.PublishProgress,
		Logger:   s.logger.Named("pipeline"),
	})
	result, err := orch.Run(ctx)

	s.mu.Lock()
	s.pipelineRunning = false
	s.lastPipelineRun = time.Now()
	s.pipelineRuns++
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("pipeline failed", zap.Error(err))
		observability.RecordPhaseRun("pipeline", "error", time.Since(start).Seconds())
		s.hub.Publish(dashboard.MsgTypeStatus, map[string]string{"state": "failed", "error": err.Error()})
		return
	}

	observability.RecordPhaseRun("pipeline", "ok", time.Since(start).Seconds())
	if !result.DataUnavailable {
		observability.MarkSearchSuccess(time.Now().Unix())
	}
	s.logger.Info("pipeline completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("errors", len(result.Errors)),
	)
	summary := map[string]any{
		"data_unavailable": result.DataUnavailable,
		"coarse_trials":    result.CoarseTrials,
		"fine_tune_trials": result.FineTuneTrials,
		"signals":          result.Signals,
		"files":            result.Files,
		"errors":           result.Errors,
	}
	if result.Best != nil {
		summary["best_formula"] = result.Best.FormulaID
		summary["best_score"] = result.Best.Score
	}
	if result.Validation != nil {
		summary["final_capital"] = result.Validation.Metrics.FinalCapital
		summary["total_trades"] = result.Validation.Metrics.TotalTrades
	}
	s.hub.Publish(dashboard.MsgTypeResult, summary)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/leaderboard", s.handleLeaderboard)
	return mux
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	LastPipelineRun time.Time `json:"last_pipeline_run,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	PipelineRuns    int       `json:"pipeline_runs"`
	PipelineRunning bool      `json:"pipeline_running"`
	Clients         int       `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		LastPipelineRun: s.lastPipelineRun,
		LastError:       s.lastError,
		PipelineRuns:    s.pipelineRuns,
		PipelineRunning: s.pipelineRunning,
	}
	s.mu.Unlock()
	resp.Clients = s.hub.Clients()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// leaderboardRow is the JSON shape of one leaderboard entry.
type leaderboardRow struct {
	Rank        int                       `json:"rank"`
	TrialID     string                    `json:"trial_id"`
	FormulaID   string                    `json:"formula_id"`
	FormulaName string                    `json:"formula_name"`
	Params      domain.ParameterSet       `json:"params"`
	Score       float64                   `json:"score"`
	Origin      domain.Origin             `json:"origin"`
	Metrics     domain.PerformanceMetrics `json:"metrics"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.results.LoadResults(r.Context(), domain.TableLeaderboard)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows := make([]leaderboardRow, 0, len(board))
	for i, b := range board {
		rows = append(rows, leaderboardRow{
			Rank:        i + 1,
			TrialID:     b.TrialID,
			FormulaID:   b.FormulaID,
			FormulaName: b.FormulaName,
			Params:      b.Params,
			Score:       b.Score,
			Origin:      b.Origin,
			Metrics:     b.Metrics,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}
