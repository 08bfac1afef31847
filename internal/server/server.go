package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"memberport/internal/config"
	"memberport/internal/database"
	"memberport/internal/middlewares"
	"memberport/internal/repositories"
	"memberport/internal/services"
)

const janitorInterval = 10 * time.Minute

type Server struct {
	cfg             *config.Config
	httpServer      *http.Server
	db              database.Service
	recoveryRepo    repositories.RecoveryRepository
	recoveryService services.RecoveryService
	stopJanitor     chan struct{}
}

func NewServer() *Server {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db := database.New(cfg.MongoURI)

	userRepo := repositories.NewUserRepository(db)
	recoveryRepo := repositories.NewRecoveryRepository(db.Database())

	emailService := services.NewEmailService(cfg)
	recoveryService := services.NewRecoveryService(userRepo, recoveryRepo, emailService, cfg.Recovery())

	s := &Server{
		cfg:             cfg,
		db:              db,
		recoveryRepo:    recoveryRepo,
		recoveryService: recoveryService,
		stopJanitor:     make(chan struct{}),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go middlewares.CleanupVisitors()
	go s.janitor()

	return s
}

func (s *Server) Start() error {
	log.Info().Int("port", s.cfg.Port).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

// janitor sweeps recovery records that are dead by time, so stale rows
// cannot accumulate when a member abandons the flow.
func (s *Server) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopJanitor:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			deleted, err := s.recoveryRepo.DeleteExpired(ctx)
			cancel()
			if err != nil {
				log.Error().Err(err).Msg("Failed to sweep expired recovery records")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Swept expired recovery records")
			}
		}
	}
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	close(s.stopJanitor)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}

	if err := s.db.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	}

	log.Info().Msg("Server exiting")
	done <- true
}
