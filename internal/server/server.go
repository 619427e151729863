// Package server exposes dialogue sessions over HTTP and websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
	"github.com/liuscraft/orion-therapy/internal/logging"
	"github.com/liuscraft/orion-therapy/internal/nlu"
	"github.com/liuscraft/orion-therapy/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// Options 服务参数
type Options struct {
	// ResetDelay is passed to every session.
	ResetDelay time.Duration
	// NoSpeechTimeout injects a no-speech turn after this much client silence.
	// Zero disables it.
	NoSpeechTimeout time.Duration
}

// Server 每个 websocket 连接对应一个会话
type Server struct {
	dialogueCfg dialogue.Config
	interp      nlu.Interpreter
	repo        store.Repository
	opts        Options
	upgrader    websocket.Upgrader

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

// New 创建服务；repo 为 nil 时不记录会话日志
func New(dialogueCfg dialogue.Config, interp nlu.Interpreter, repo store.Repository, opts Options) *Server {
	return &Server{
		dialogueCfg: dialogueCfg,
		interp:      interp,
		repo:        repo,
		opts:        opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*wsConn]struct{}),
	}
}

// Router 构建路由
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/ws", s.serveWS)
	r.Get("/sessions/{id}/turns", s.listTurns)

	return r
}

// CloseSessions 关闭所有仍在运行的 websocket 会话
func (s *Server) CloseSessions() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (s *Server) track(c *wsConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	if s.interp != nil {
		status["nlu"] = s.interp.Name()
	}
	statusCode := http.StatusOK

	switch {
	case s.repo == nil:
		checks["database"] = "disabled"
	case s.repo.Ping(ctx) != nil:
		logging.Errorf("health check: database unreachable")
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	default:
		checks["database"] = "ok"
	}

	writeJSON(w, statusCode, status)
}

func (s *Server) listTurns(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusNotFound, "session journal is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	turns, err := s.repo.ListTurns(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		logging.Errorf("list turns for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to list turns")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"turns":      turns,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warnf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
