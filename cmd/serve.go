package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebita-intel/metrics-cli/internal/cache"
	"github.com/ebita-intel/metrics-cli/internal/orchestrator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve consensus financials over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(e),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/fetch/financials", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			EntityID string `json:"entity_id"`
			Region   string `json:"region"`
			Industry string `json:"industry"`
			NoCache  bool   `json:"no_cache"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		record, err := e.Orchestrator.FetchFinancials(req.Context(), orchestrator.Request{
			EntityID: body.EntityID,
			Region:   body.Region,
			Industry: body.Industry,
			UseCache: !body.NoCache,
		})
		if err != nil {
			if errors.Is(err, orchestrator.ErrBadEntityID) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			zap.L().Error("fetch failed", zap.String("entity", body.EntityID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]any{
			"sources":  e.Registry.Sources(),
			"limits":   e.Limiter.Snapshot(),
			"breakers": e.Breakers.States(),
		}
		if mem, ok := e.Cache.(*cache.Memory); ok {
			status["cache"] = mem.Stats()
		}
		writeJSON(w, http.StatusOK, status)
	})

	r.Delete("/cache/{substring}", func(w http.ResponseWriter, req *http.Request) {
		removed, err := e.Cache.Invalidate(req.Context(), chi.URLParam(req, "substring"))
		if err != nil {
			zap.L().Error("cache invalidation failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
