package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"ckuserver/database"
	"ckuserver/internal/config"
	"ckuserver/server/handlers"
	"ckuserver/server/middleware"
	"ckuserver/server/services"
)

// Version is stamped at build time.
var Version = "dev"

// Server owns the store, the services and the HTTP surface.
type Server struct {
	config *config.Config
	db     *database.DB
	logger *slog.Logger

	finalizeService *services.FinalizeService
	auditService    *services.AuditService
	notifyService   *services.NotificationService
	exportService   *services.ExportService

	httpServer     *http.Server
	httpHandler    http.Handler
	handlerOnce    sync.Once
	handlerInitErr error
}

// NewServer wires the whole pipeline on top of an open database.
func NewServer(cfg *config.Config, db *database.DB) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}

	auditService, err := services.NewAuditService(db, cfg.DetailsJSONMaxLen)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit service: %w", err)
	}

	notifyService := services.NewNotificationService(cfg.TeamsWebhookURL, cfg.NotifyTimeout)

	registry := services.DefaultRegistry(db, auditService)

	finalizeService, err := services.NewFinalizeService(
		db, auditService, notifyService, registry,
		cfg.RawJSONMaxLen, cfg.RawJSONMaxLen, cfg.PreviewJSONMaxLen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create finalize service: %w", err)
	}

	exportService, err := services.NewExportService(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create export service: %w", err)
	}

	return &Server{
		config:          cfg,
		db:              db,
		logger:          Logger,
		finalizeService: finalizeService,
		auditService:    auditService,
		notifyService:   notifyService,
		exportService:   exportService,
	}, nil
}

// buildHTTPHandler assembles the gin engine with the middleware chain
// and all routes.
func (s *Server) buildHTTPHandler() (http.Handler, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.GinRequestIDMiddleware())
	router.Use(middleware.GinSecurityHeadersMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinGzipMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(gin.Recovery())

	monitoringHandler := handlers.NewMonitoringHandler(s.db, Version)
	router.GET("/health", monitoringHandler.HandleHealthGin)

	finalizeHandler, err := handlers.NewFinalizeHandler(s.finalizeService)
	if err != nil {
		return nil, err
	}
	submissionsHandler, err := handlers.NewSubmissionsHandler(s.finalizeService, s.auditService, s.exportService)
	if err != nil {
		return nil, err
	}

	api := router.Group("/api")
	api.Use(middleware.GinAPIKeyMiddleware(s.config.APIKey))

	finalizeLimiter := middleware.NewRateLimiter(s.config.FinalizeRateLimit, s.config.FinalizeRateBurst)
	api.POST("/submissions/finalize", finalizeLimiter.Middleware(), finalizeHandler.HandleFinalizeGin)

	api.GET("/submissions", submissionsHandler.HandleListSubmissionsGin)
	api.GET("/submissions/export", submissionsHandler.HandleExportSubmissionsGin)
	api.GET("/submissions/:id", submissionsHandler.HandleGetSubmissionGin)
	api.GET("/submissions/:id/health", submissionsHandler.HandleSubmissionHealthGin)
	api.GET("/audit", submissionsHandler.HandleListAuditGin)

	return router, nil
}

func (s *Server) ensureHTTPHandler() (http.Handler, error) {
	s.handlerOnce.Do(func() {
		handler, err := s.buildHTTPHandler()
		if err != nil {
			s.handlerInitErr = err
			return
		}
		s.httpHandler = handler
	})
	if s.handlerInitErr != nil {
		return nil, s.handlerInitErr
	}
	return s.httpHandler, nil
}

// ServeHTTP makes the server usable directly with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		http.Error(w, "server not initialized", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%s", s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("HTTP server starting", "addr", addr, "version", Version)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown failed", "error", err)
			return err
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("database close failed", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
