// Package httpapi is the local control surface: health, group listing,
// manual sends, scheduled task CRUD, summary triggering, and a WebSocket
// event feed.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/chatclaw/internal/bot"
	"github.com/nextlevelbuilder/chatclaw/internal/bus"
	"github.com/nextlevelbuilder/chatclaw/internal/config"
	"github.com/nextlevelbuilder/chatclaw/internal/store"
	"github.com/nextlevelbuilder/chatclaw/internal/wechat"
)

// UIBridge is the slice of the chat adapter the API needs. Every send goes
// through the gate; the API never touches the UI while the bot is mid-action.
type UIBridge interface {
	ListGroups(ctx context.Context) ([]wechat.Group, error)
	SendTextTo(ctx context.Context, group, text string) error
}

// SummaryRunner triggers and inspects summary runs.
type SummaryRunner interface {
	RunAsync(ctx context.Context, date string) error
	Running() bool
}

// Server serves the control API.
type Server struct {
	cfg       *config.Holder
	bridge    UIBridge
	gate      *bot.Gate
	tasks     store.TaskStore
	summaries SummaryRunner
	events    *bus.Hub

	limiter    *clientLimiter
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer wires the control surface. tasks and summaries may be nil;
// their routes then answer 503.
func NewServer(cfg *config.Holder, bridge UIBridge, gate *bot.Gate, tasks store.TaskStore, summaries SummaryRunner, events *bus.Hub) *Server {
	s := &Server{
		cfg:       cfg,
		bridge:    bridge,
		gate:      gate,
		tasks:     tasks,
		summaries: summaries,
		events:    events,
	}
	s.limiter = newClientLimiter(cfg.Current().HTTP.RateLimitRPM)
	return s
}

// BuildMux creates and caches the mux so extra listeners (Tailscale) can
// serve the same routes.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/groups", s.limited(s.handleGroups))
	mux.HandleFunc("POST /api/send", s.limited(s.handleSend))

	mux.HandleFunc("GET /api/tasks", s.limited(s.handleTaskList))
	mux.HandleFunc("POST /api/tasks", s.limited(s.handleTaskCreate))
	mux.HandleFunc("GET /api/tasks/{id}", s.limited(s.handleTaskGet))
	mux.HandleFunc("PUT /api/tasks/{id}", s.limited(s.handleTaskUpdate))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.limited(s.handleTaskDelete))

	mux.HandleFunc("POST /api/summary", s.limited(s.handleSummaryRun))
	mux.HandleFunc("GET /api/summary/status", s.handleSummaryStatus)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.mux = mux
	return mux
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Current().HTTP
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.BuildMux(),
	}

	slog.Info("control api starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("control api: %w", err)
	}
	return nil
}

// limited applies the per-client request rate limit when one is configured.
// Clients are keyed by remote host so one caller cannot starve the rest.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}
		if !s.limiter.Allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"group":  s.cfg.Current().Group.Name,
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.bridge.ListGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type sendRequest struct {
	Group   string `json:"group"`
	Message string `json:"message"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Group == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "group and message are required")
		return
	}

	// A gated send drives the shared UI surface; once started it must
	// finish even if the client hangs up mid-request.
	sendCtx := context.WithoutCancel(r.Context())
	err := s.gate.Do(func() error {
		return s.bridge.SendTextTo(sendCtx, req.Group, req.Message)
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	slog.Info("manual send", "group", req.Group)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSummaryRun(w http.ResponseWriter, r *http.Request) {
	if s.summaries == nil {
		writeError(w, http.StatusServiceUnavailable, "summary not configured")
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}
	if err := s.summaries.RunAsync(r.Context(), req.Date); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

func (s *Server) handleSummaryStatus(w http.ResponseWriter, r *http.Request) {
	running := s.summaries != nil && s.summaries.Running()
	writeJSON(w, http.StatusOK, map[string]any{"running": running})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
