package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	identityresolver "pollwarden/contexts/identity-access/identity-resolver"
	voteengine "pollwarden/contexts/polling/vote-engine"
	votehttp "pollwarden/contexts/polling/vote-engine/transport/http"
	"pollwarden/internal/platform/admission"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "pollwarden/internal/platform/httpserver/docs"
)

type Server struct {
	mux            *http.ServeMux
	http           *http.Server
	logger         *slog.Logger
	addr           string
	serviceName    string
	votes          voteengine.Module
	identity       identityresolver.Module
	admission      *admission.Controller
	trustedProxies []netip.Prefix
}

type Options struct {
	Addr           string
	ServiceName    string
	TrustedProxies []netip.Prefix
}

func New(
	votes voteengine.Module,
	identity identityresolver.Module,
	gate *admission.Controller,
	logger *slog.Logger,
	opts Options,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "pollwarden"
	}
	if gate == nil {
		gate = admission.NewController(admission.NewMemoryLimiter(), nil, nil, logger)
	}

	s := &Server{
		mux:            http.NewServeMux(),
		logger:         logger,
		addr:           opts.Addr,
		serviceName:    opts.ServiceName,
		votes:          votes,
		identity:       identity,
		admission:      gate,
		trustedProxies: opts.TrustedProxies,
	}
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks until the listener fails or Shutdown is called. A clean
// shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /v1/votes", s.handleCreateVote)
	s.mux.HandleFunc("POST /v1/votes/{vote_id}/options", s.handleAddOption)
	s.mux.HandleFunc("DELETE /v1/votes/{vote_id}/options/{option_id}", s.handleRemoveOption)
	s.mux.HandleFunc("POST /v1/votes/{vote_id}/publish", s.handlePublishVote)
	s.mux.HandleFunc("POST /v1/votes/{vote_id}/close", s.handleCloseVote)
	s.mux.HandleFunc("GET /v1/votes/{vote_id}", s.handleGetVote)
	s.mux.HandleFunc("GET /v1/votes/by-slug/{slug}", s.handleGetVoteBySlug)
	s.mux.HandleFunc("POST /v1/votes/{vote_id}/responses", s.handleSubmitResponse)
	s.mux.HandleFunc("GET /v1/votes/{vote_id}/results", s.handleGetResults)
	s.mux.HandleFunc("GET /v1/votes/{vote_id}/results/snapshot", s.handleGetResultSnapshot)
	s.mux.HandleFunc("POST /v1/votes/{vote_id}/flags", s.handleFlagVote)

	s.mux.HandleFunc("GET /v1/moderation/flags", s.handleListFlags)
	s.mux.HandleFunc("POST /v1/moderation/flags/{flag_id}/review", s.handleReviewFlag)
	s.mux.HandleFunc("POST /v1/moderation/votes/{vote_id}/actions", s.handleApplyAction)
	s.mux.HandleFunc("POST /v1/moderation/actions/bulk", s.handleBulkAction)
	s.mux.HandleFunc("GET /v1/moderation/votes/{vote_id}/actions", s.handleListModerationActions)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, votehttp.HealthResponse{Status: "ok", Service: s.serviceName})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func headerValue(r *http.Request, name string) string {
	return strings.TrimSpace(r.Header.Get(name))
}
