package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"

	"github.com/spektr-org/finchat/internal/chat"
	"github.com/spektr-org/finchat/internal/common"
)

// Server is the HTTP and WebSocket front-end of the chat service.
type Server struct {
	service  *chat.Service
	config   *common.Config
	router   *mux.Router
	server   *http.Server
	validate *validator.Validate
	upgrader websocket.Upgrader
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

// New builds the server and its routes.
func New(service *chat.Service, config *common.Config, logger arbor.ILogger) *Server {
	if config == nil {
		config = common.NewDefaultConfig()
	}
	if logger == nil {
		logger = arbor.NewLogger()
	}

	s := &Server{
		service:  service,
		config:   config,
		validate: validator.New(),
		markdown: NewMarkdown(),
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  common.Duration(config.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: common.Duration(config.Server.WriteTimeout, 60*time.Second),
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})

	var handler http.Handler = s.router
	handler = s.recoveryMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return c.Handler(handler)
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
