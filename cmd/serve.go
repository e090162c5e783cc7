package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/stealthee/radar-cli/internal/pipeline"
	"github.com/stealthee/radar-cli/internal/registry"
	"github.com/stealthee/radar-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for detection runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		maxRuns := cfg.Server.MaxConcurrentRuns
		if maxRuns <= 0 {
			maxRuns = 4
		}
		runSem := semaphore.NewWeighted(int64(maxRuns))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/pipeline/run", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Query      string   `json:"query"`
				NumResults int      `json:"num_results"`
				Fields     []string `json:"fields"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Query == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
				return
			}

			if !runSem.TryAcquire(1) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many concurrent runs"})
				return
			}

			var fields []registry.Field
			for _, n := range body.Fields {
				fields = append(fields, registry.Field{Name: n})
			}

			// Detached from the request context: the run outlives the 202.
			go func() {
				defer runSem.Release(1)
				report, err := env.Pipeline.Run(ctx, pipeline.Request{
					Query:        body.Query,
					NumResults:   body.NumResults,
					TargetFields: fields,
				})
				if err != nil {
					zap.L().Error("pipeline run failed",
						zap.String("query", body.Query),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("pipeline run finished",
					zap.String("query", body.Query),
					zap.String("run_id", report.RunID),
					zap.String("state", string(report.State)),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "accepted",
				"query":  body.Query,
			})
		})

		r.Get("/signals", func(w http.ResponseWriter, req *http.Request) {
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			minLikelihood, _ := strconv.ParseFloat(req.URL.Query().Get("min_likelihood"), 64)

			records, err := env.Store.ListSignals(req.Context(), store.SignalFilter{
				RunID:         req.URL.Query().Get("run_id"),
				MinLikelihood: minLikelihood,
				Limit:         limit,
			})
			if err != nil {
				zap.L().Error("list signals failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list signals failed"})
				return
			}
			writeJSON(w, http.StatusOK, records)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
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
