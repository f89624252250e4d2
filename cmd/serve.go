package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/pipeline"
	"github.com/sells-group/cnpj-enrich/internal/registry"
	"github.com/sells-group/cnpj-enrich/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAgent(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Service, env.Store, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// agentService is the part of pipeline.Service the HTTP API calls.
type agentService interface {
	Enrich(ctx context.Context, taxID, conversationID string) (*model.Response, error)
	Respond(ctx context.Context, req pipeline.ChatRequest) (*model.Reply, error)
}

// logReader serves the audit query routes.
type logReader interface {
	ListExecutions(ctx context.Context, f store.ExecutionFilter) ([]model.ExecutionRecord, error)
	ListSearches(ctx context.Context, f store.SearchFilter) ([]model.SearchRecord, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

type enrichRequest struct {
	CNPJ           string `json:"cnpj"`
	ConversationID string `json:"conversationId,omitempty"`
}

// newRouter builds the API routes.
func newRouter(svc agentService, logs logReader, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/agent", func(r chi.Router) {
		r.Post("/enrich", handleEnrich(svc))
		r.Post("/chat", handleChat(svc))
	})

	r.Route("/logs", func(r chi.Router) {
		r.Get("/agent", handleExecutionLogs(logs))
		r.Get("/agent/{requestID}", handleExecutionLogs(logs))
		r.Get("/search", handleSearchLogs(logs))
		r.Get("/search/{requestID}", handleSearchLogs(logs))
		r.Get("/messages/{conversationID}", handleMessages(logs))
	})

	return r
}

func handleEnrich(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrichRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.CNPJ == "" {
			writeError(w, http.StatusBadRequest, "cnpj is required")
			return
		}

		resp, err := svc.Enrich(r.Context(), req.CNPJ, req.ConversationID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleChat(svc agentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}

		reply, err := svc.Respond(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if reply.Enrichment != nil {
			writeJSON(w, http.StatusOK, reply.Enrichment)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": reply.Message})
	}
}

func handleExecutionLogs(logs logReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, ok := parseLimit(w, q.Get("limit"))
		if !ok {
			return
		}
		f := store.ExecutionFilter{
			RequestID:      q.Get("requestId"),
			TaxID:          model.CleanTaxID(q.Get("cnpj")),
			ConversationID: q.Get("conversationId"),
			Operation:      model.Operation(q.Get("operation")),
			Limit:          limit,
		}
		if id := chi.URLParam(r, "requestID"); id != "" {
			f.RequestID = id
		}

		recs, err := logs.ListExecutions(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(recs))
	}
}

func handleSearchLogs(logs logReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, ok := parseLimit(w, q.Get("limit"))
		if !ok {
			return
		}
		f := store.SearchFilter{
			RequestID:      q.Get("requestId"),
			ConversationID: q.Get("conversationId"),
			Term:           q.Get("searchTerm"),
			Limit:          limit,
		}
		if id := chi.URLParam(r, "requestID"); id != "" {
			f.RequestID = id
		}

		recs, err := logs.ListSearches(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(recs))
	}
}

func handleMessages(logs logReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := logs.ListMessages(r.Context(), chi.URLParam(r, "conversationID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(msgs))
	}
}

func parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var upstream *registry.UpstreamError
	switch {
	case errors.Is(err, model.ErrInvalidTaxID):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		if upstream.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, pipeline.ErrChatFailed):
		msg = pipeline.ErrChatFailed.Error()
	case status == http.StatusInternalServerError:
		zap.L().Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
