package server

import (
	"context"
	"net/http"
	"time"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
)

// Server exposes the analysis pipeline over REST and SSE.
type Server struct {
	cfg      common.ServerConfig
	logger   *common.Logger
	analysis interfaces.AnalysisService
	master   interfaces.MasterService

	mounts map[string]http.Handler

	httpServer *http.Server
}

func NewServer(
	cfg common.ServerConfig,
	analysis interfaces.AnalysisService,
	master interfaces.MasterService,
	logger *common.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		analysis: analysis,
		master:   master,
		mounts:   make(map[string]http.Handler),
	}
}

// Mount attaches an extra handler, such as the MCP transport, under the
// given pattern on the same listener. Call before Start.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mounts[pattern] = h
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/analyze/{code}", s.handleAnalyze)
	mux.HandleFunc("GET /api/analyze/{code}/stream", s.handleAnalyzeStream)
	mux.HandleFunc("DELETE /api/cache/{code}", s.handleClearCache)

	for pattern, h := range s.mounts {
		mux.Handle(pattern, h)
	}

	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", s.cfg.Address()).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
