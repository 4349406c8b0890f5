package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// Server is the local admin HTTP API used by mediactl and media-mcp
type Server struct {
	access    *usecase.AccessUsecase
	tracker   *usecase.JobTracker
	transport repo.TransportRepo

	router    *gin.Engine
	server    *http.Server
	port      int
	token     string
	startedAt time.Time
	log       *slog.Logger
}

// NewServer creates the API server. An empty token disables authentication.
func NewServer(access *usecase.AccessUsecase, tracker *usecase.JobTracker, transport repo.TransportRepo, port int, token string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		access:    access,
		tracker:   tracker,
		transport: transport,
		router:    gin.New(),
		port:      port,
		token:     token,
		startedAt: time.Now(),
		log:       logger.Component("api"),
	}
	s.router.Use(gin.Recovery(), s.requestLog())
	s.registerRoutes()
	return s
}

// Engine returns the gin engine
func (s *Server) Engine() *gin.Engine { return s.router }

// Start starts the HTTP server on localhost
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("starting HTTP server", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := s.log.With("method", c.Request.Method, logger.FieldPath, c.Request.URL.Path)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))
		c.Next()
		reqLog.Debug("request",
			"status", c.Writer.Status(),
			logger.FieldDuration, time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			unauthorized(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
