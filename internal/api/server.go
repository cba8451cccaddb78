package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"mockexam-workers/internal/common/logger"

	"github.com/rs/cors"
)

type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

// NewServer wraps handler with CORS for the admin panel origins.
func NewServer(addr string, handler http.Handler, allowedOrigins []string, log logger.Logger) *Server {
	if len(allowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", headerRequestID},
			ExposedHeaders:   []string{"Content-Disposition", "X-Export-Id", "X-Export-Rows", headerRequestID},
			AllowCredentials: true,
		}).Handler(handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("Admin API listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
