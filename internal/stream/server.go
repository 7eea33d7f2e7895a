package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"superengulfing/config"
	"superengulfing/pkg/pattern"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Limits for POST /api/classify. A JSON bar is well under 128 bytes.
const (
	maxClassifyBars  = 10_000
	maxClassifyBytes = maxClassifyBars * 128
)

// Server exposes the classifier over HTTP and streams scenarios and quiz
// questions over websockets.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
	sessions atomic.Int64
	nextSeed func() uint64
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	// A configured seed makes the n-th connection deterministic.
	var counter atomic.Uint64
	base := cfg.Scenario.Seed
	nextSeed := func() uint64 { return base + counter.Add(1) }
	if base == 0 {
		nextSeed = func() uint64 { return uint64(time.Now().UnixNano()) + counter.Add(1) }
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		nextSeed: nextSeed,
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/classify", s.handleClassify)
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Load(),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClassifyBytes)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorMessage{Type: "error", Error: fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorMessage{Type: "error", Error: "invalid body: " + err.Error()})
		return
	}
	if len(req.Bars) > maxClassifyBars {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorMessage{Type: "error", Error: fmt.Sprintf("at most %d bars", maxClassifyBars)})
		return
	}
	if req.Depth == 0 {
		req.Depth = s.cfg.Engine.SweepDepth
	}

	matches := pattern.Scan(req.Bars, req.Depth)
	if matches == nil {
		matches = []pattern.Match{}
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{Matches: matches})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewSession(conn, s.cfg, s.nextSeed(), s.logger)
	s.sessions.Add(1)
	defer s.sessions.Add(-1)
	s.logger.Info("session opened", zap.String("session", session.ID), zap.String("remote", r.RemoteAddr))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read error", zap.String("session", session.ID), zap.Error(err))
			}
			break
		}
		if err := session.Handle(ctx, msg); err != nil {
			s.logger.Warn("websocket write error", zap.String("session", session.ID), zap.Error(err))
			break
		}
	}

	score := session.Score()
	s.logger.Info("session closed",
		zap.String("session", session.ID),
		zap.Int("asked", score.Asked),
		zap.Int("correct", score.Correct))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
