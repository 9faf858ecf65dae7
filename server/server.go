package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	orchestratorx "github.com/tanpawarit/device-reservation-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
	logx "github.com/tanpawarit/device-reservation-agent/pkg/logger"
)

// Engine is the agent surface the transport needs.
type Engine interface {
	StreamTurn(ctx context.Context, sessionID, message string, sink orchestratorx.EventSink) error
	ApplyAction(ctx context.Context, req contractx.ActionRequest) (contractx.ActionResponse, error)
}

type Server struct {
	cfg    Config
	engine Engine
	router *gin.Engine
	logger zerolog.Logger
}

// New builds the HTTP server. A nil engine keeps /health up and answers 503 on agent routes.
func New(cfg Config, engine Engine) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logx.Component("http"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(cors.New(corsConfig(s.cfg.CORSAllowOrigins)))
	r.Use(rateLimit(s.cfg.RateLimitPerMinute, s.cfg.RateLimitBurst, s.logger))

	prefix := "/" + strings.Trim(strings.TrimSpace(s.cfg.APIPrefix), "/")
	if prefix == "/" {
		prefix = ""
	}
	api := r.Group(prefix)
	{
		api.GET("/health", s.health)
		api.POST("/agent/chat/stream", s.chatStream)
		api.POST("/agent/reservations/decision", s.decision)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) == 0 || (len(cleaned) == 1 && cleaned[0] == "*") {
		conf.AllowAllOrigins = true
		return conf
	}
	conf.AllowOrigins = cleaned
	conf.AllowCredentials = true
	return conf
}

// Run serves until ctx is cancelled, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("server is shutting down")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("server stopped gracefully")
	return nil
}
