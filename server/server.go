package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/config"
	"github.com/techagentng/quizchat/db"
	"github.com/techagentng/quizchat/realtime"
	"github.com/techagentng/quizchat/services"
)

// Server holds every dependency the handlers use. It is assembled once in
// main and never reaches for globals.
type Server struct {
	Config              *config.Config
	Logger              zerolog.Logger
	Stores              *db.Stores
	ConversationService services.ConversationService
	MessageService      services.MessageService
	PostService         services.PostService
	MediaService        services.MediaService
	Hub                 *realtime.Hub
	Dispatcher          *realtime.Dispatcher
	Relay               *realtime.RedisRelay
	RateLimitStore      ratelimit.Store
}

// Handler builds the gin engine; tests drive it through httptest.
func (s *Server) Handler() *gin.Engine {
	return s.setupRouter()
}

// Start serves until SIGINT or SIGTERM, then drains requests, cancels
// pending broadcasts and closes the store.
func (s *Server) Start() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.Relay != nil {
		go func() {
			if err := s.Relay.Run(ctx); err != nil {
				s.Logger.Error().Err(err).Msg("redis relay stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Config.Port),
		Handler:           s.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.Logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	s.Logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.Logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := s.Dispatcher.Shutdown(shutdownCtx); err != nil {
		s.Logger.Warn().Err(err).Msg("pending broadcasts abandoned")
	}
	s.Hub.Close()
	if err := s.Stores.Close(shutdownCtx); err != nil {
		s.Logger.Error().Err(err).Msg("closing store")
	}
	s.Logger.Info().Msg("server exiting")
}
