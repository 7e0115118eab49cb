// Package server exposes the product API over HTTP: chat, knowledge
// base, billing, public profiles and the scheduler-triggered curation
// endpoints.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mindclone/mindclone/internal/billing"
	"github.com/mindclone/mindclone/internal/config"
	"github.com/mindclone/mindclone/internal/database"
)

// ChatService produces an assistant reply for one chat turn.
type ChatService interface {
	Reply(ctx context.Context, user *database.User, message string) (string, error)
}

// BillingClient creates Stripe checkout and customer-portal sessions.
type BillingClient interface {
	IsConfigured() bool
	CreateCheckoutSession(ctx context.Context, user *database.User) (*billing.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// CurationRunner executes one curation batch.
type CurationRunner interface {
	RunBatch(ctx context.Context) (*database.RunRecord, error)
}

// Server is the HTTP server for the product API.
type Server struct {
	db      *database.DB
	cfg     *config.Config
	chat    ChatService
	billing BillingClient
	curator CurationRunner
	router  *gin.Engine
}

// New creates a new Server and wires up its routes.
func New(db *database.DB, cfg *config.Config, chat ChatService, billing BillingClient, curator CurationRunner) *Server {
	router := gin.Default()

	s := &Server{
		db:      db,
		cfg:     cfg,
		chat:    chat,
		billing: billing,
		curator: curator,
		router:  router,
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/api/profile/:handle", s.handleProfile)

	api := router.Group("/api", s.requireUser)
	{
		api.POST("/chat", s.handleChat)
		api.POST("/billing/checkout", s.handleCheckout)
		api.POST("/billing/portal", s.handlePortal)
		api.POST("/documents", s.handleDocumentUpload)
		api.GET("/knowledge", s.handleKnowledgeList)
		api.POST("/knowledge", s.handleKnowledgeCreate)
		api.GET("/knowledge/:id", s.handleKnowledgeGet)
		api.PUT("/knowledge/:id", s.handleKnowledgeUpdate)
		api.DELETE("/knowledge/:id", s.handleKnowledgeDelete)
		api.GET("/messages", s.handleMessages)
	}

	curation := router.Group("/api/curation", s.requireScheduler)
	{
		curation.POST("/run", s.handleCurationRun)
		curation.GET("/status", s.handleCurationStatus)
	}

	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server on the given port.
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return s.router.Run(addr)
}

// requireUser resolves the bearer token to a user and stores it on the
// context. Every authenticated request refreshes last_active_at, which
// is what keeps the user inside the curation activity window.
func (s *Server) requireUser(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "missing bearer token",
		})
		return
	}

	user, err := s.db.GetUserByToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "looking up user",
		})
		return
	}
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "invalid token",
		})
		return
	}

	if err := s.db.TouchUserActivity(user.ID, time.Now().UTC()); err != nil {
		log.Printf("Failed to record activity for user %d: %v", user.ID, err)
	}

	c.Set("user", user)
	c.Next()
}

// requireScheduler guards the curation endpoints with the shared
// scheduler secret. The comparison is constant-time and happens before
// any batch work.
func (s *Server) requireScheduler(c *gin.Context) {
	secret := s.cfg.SchedulerToken()
	if secret == "" {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "scheduler token not configured",
		})
		return
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "invalid scheduler token",
		})
		return
	}

	c.Next()
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func currentUser(c *gin.Context) *database.User {
	return c.MustGet("user").(*database.User)
}
