package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

// Status is the response of GET /api/status
type Status struct {
	PublicMode    bool   `json:"public_mode"`
	Admin         string `json:"admin"`
	AllowedCount  int    `json:"allowed_count"`
	ActiveJobs    int    `json:"active_jobs"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// AllowList is the response of GET /api/allowlist
type AllowList struct {
	PublicMode bool     `json:"public_mode"`
	Identities []string `json:"identities"`
}

// IdentityRequest is the body of POST /api/allowlist
type IdentityRequest struct {
	Identity string `json:"identity"`
}

// ModeRequest is the body of POST /api/mode
type ModeRequest struct {
	Public *bool `json:"public"`
}

// SendRequest is the body of POST /api/send
type SendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

const apiActor = domain.Identity("api")

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := s.router.Group("/api", s.requireToken())
	api.GET("/status", s.handleStatus)
	api.GET("/jobs", s.handleJobs)

	api.GET("/allowlist", s.handleAllowList)
	api.POST("/allowlist", s.handleAllow)
	api.DELETE("/allowlist/:identity", s.handleDeny)

	api.GET("/mode", s.handleGetMode)
	api.POST("/mode", s.handleSetMode)

	api.POST("/send", s.handleSend)
}

func (s *Server) handleStatus(c *gin.Context) {
	cfg := s.access.Snapshot()
	success(c, Status{
		PublicMode:    cfg.PublicMode,
		Admin:         cfg.Admin.String(),
		AllowedCount:  len(cfg.AllowList),
		ActiveJobs:    len(s.tracker.Active()),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleJobs(c *gin.Context) {
	success(c, gin.H{"jobs": s.tracker.Active()})
}

func (s *Server) handleAllowList(c *gin.Context) {
	cfg := s.access.Snapshot()
	ids := cfg.AllowedIdentities()
	out := AllowList{PublicMode: cfg.PublicMode, Identities: make([]string, 0, len(ids))}
	for _, id := range ids {
		out.Identities = append(out.Identities, id.String())
	}
	success(c, out)
}

func (s *Server) handleAllow(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON")
		return
	}
	id := domain.NormalizeIdentity(req.Identity)
	if id.IsZero() {
		badRequest(c, "identity is required")
		return
	}
	added, err := s.access.AllowIdentity(c.Request.Context(), id, apiActor)
	if err != nil {
		serverError(c, err)
		return
	}
	success(c, gin.H{"identity": id.String(), "added": added})
}

func (s *Server) handleDeny(c *gin.Context) {
	id := domain.NormalizeIdentity(c.Param("identity"))
	if id.IsZero() {
		badRequest(c, "identity is required")
		return
	}
	removed, err := s.access.RevokeIdentity(c.Request.Context(), id)
	if err != nil {
		serverError(c, err)
		return
	}
	success(c, gin.H{"identity": id.String(), "removed": removed})
}

func (s *Server) handleGetMode(c *gin.Context) {
	success(c, gin.H{"public": s.access.Snapshot().PublicMode})
}

func (s *Server) handleSetMode(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Public == nil {
		badRequest(c, "public (bool) is required")
		return
	}
	if err := s.access.SetPublicMode(c.Request.Context(), *req.Public); err != nil {
		serverError(c, err)
		return
	}
	success(c, gin.H{"public": *req.Public})
}

func (s *Server) handleSend(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON")
		return
	}
	if req.ChatID == "" || req.Text == "" {
		badRequest(c, "chat_id and text are required")
		return
	}
	if err := s.transport.SendText(c.Request.Context(), domain.Identity(req.ChatID), req.Text); err != nil {
		serverError(c, err)
		return
	}
	success(c, gin.H{"sent": true})
}
