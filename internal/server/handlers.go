package server

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/mindclone/mindclone/internal/database"
	"github.com/mindclone/mindclone/internal/extract"
	"github.com/mindclone/mindclone/internal/llm"
)

const (
	maxContentSize = 1 << 20 // 1MB
	maxListLimit   = 200
	profileTitles  = 10
)

var md = goldmark.New()

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "message required",
		})
		return
	}

	reply, err := s.chat.Reply(c.Request.Context(), currentUser(c), req.Message)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "chat model not configured",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reply":   reply,
	})
}

func (s *Server) handleCheckout(c *gin.Context) {
	if !s.billing.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "billing not configured",
		})
		return
	}

	user := currentUser(c)
	session, err := s.billing.CreateCheckoutSession(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	// First checkout for a known customer hands the binding back early.
	if session.Customer != "" && (user.StripeCustomerID == nil || *user.StripeCustomerID != session.Customer) {
		if err := s.db.SetStripeCustomerID(user.ID, session.Customer); err != nil {
			log.Printf("Failed to store stripe customer for user %d: %v", user.ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      session.ID,
		"url":     session.URL,
	})
}

func (s *Server) handlePortal(c *gin.Context) {
	if !s.billing.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "billing not configured",
		})
		return
	}

	user := currentUser(c)
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "no billing account for user",
		})
		return
	}

	url, err := s.billing.CreatePortalSession(c.Request.Context(), *user.StripeCustomerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     url,
	})
}

func (s *Server) handleProfile(c *gin.Context) {
	user, err := s.db.GetUserByHandle(c.Param("handle"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "looking up profile",
		})
		return
	}
	if user == nil || !user.Public {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "profile not found",
		})
		return
	}

	titles, err := s.db.ListPublicKnowledgeTitles(user.ID, profileTitles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "loading profile",
		})
		return
	}
	count, err := s.db.CountKnowledgeItems(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "loading profile",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"profile": gin.H{
			"handle":          user.Handle,
			"display_name":    deref(user.DisplayName),
			"bio":             deref(user.Bio),
			"knowledge_count": count,
			"recent_titles":   titles,
		},
	})
}

func (s *Server) handleDocumentUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "file field required",
		})
		return
	}
	if header.Size > maxContentSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "file exceeds maximum size of 1MB",
		})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "reading upload",
		})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "reading upload",
		})
		return
	}

	doc, err := extract.FromUpload(header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	user := currentUser(c)
	item := &database.KnowledgeItem{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		Title:   doc.Title,
		Content: doc.Text,
		Source:  "upload",
	}
	if err := s.db.InsertKnowledgeItem(item, time.Now().UTC()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	stored, err := s.db.GetKnowledgeItem(user.ID, item.ID)
	if err != nil || stored == nil {
		stored = item
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    stored,
	})
}

func (s *Server) handleKnowledgeCreate(c *gin.Context) {
	var req struct {
		Title   string   `json:"title"`
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
		Public  bool     `json:"public"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "title and content required",
		})
		return
	}
	if len(req.Content) > maxContentSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "content exceeds maximum size of 1MB",
		})
		return
	}

	user := currentUser(c)
	item := &database.KnowledgeItem{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		Title:   req.Title,
		Content: req.Content,
		Source:  "manual",
		Tags:    req.Tags,
		Public:  req.Public,
	}
	if err := s.db.InsertKnowledgeItem(item, time.Now().UTC()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	stored, err := s.db.GetKnowledgeItem(user.ID, item.ID)
	if err != nil || stored == nil {
		stored = item
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    stored,
	})
}

func (s *Server) handleKnowledgeList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	items, err := s.db.ListKnowledgeItems(currentUser(c).ID, database.KnowledgeFilter{
		Source: c.Query("source"),
		Tag:    c.Query("tag"),
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   items,
		"count":   len(items),
	})
}

func (s *Server) handleKnowledgeGet(c *gin.Context) {
	item, err := s.db.GetKnowledgeItem(currentUser(c).ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "item not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    item,
	})
}

func (s *Server) handleKnowledgeUpdate(c *gin.Context) {
	var req struct {
		Title   *string  `json:"title"`
		Content *string  `json:"content"`
		Tags    []string `json:"tags"`
		Public  *bool    `json:"public"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if req.Content != nil && len(*req.Content) > maxContentSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "content exceeds maximum size of 1MB",
		})
		return
	}

	user := currentUser(c)
	id := c.Param("id")
	found, err := s.db.UpdateKnowledgeItem(user.ID, id, req.Title, req.Content,
		req.Tags, req.Public, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "item not found",
		})
		return
	}

	item, err := s.db.GetKnowledgeItem(user.ID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    item,
	})
}

func (s *Server) handleKnowledgeDelete(c *gin.Context) {
	found, err := s.db.DeleteKnowledgeItem(currentUser(c).ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "item not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Item deleted",
	})
}

func (s *Server) handleMessages(c *gin.Context) {
	kind := c.Query("kind")
	if kind != "" && kind != "chat" && kind != "digest" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "unknown message kind",
		})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	messages, err := s.db.GetMessages(currentUser(c).ID, kind, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if c.Query("format") == "html" {
		type htmlMessage struct {
			database.Message
			HTML string `json:"html"`
		}
		rendered := make([]htmlMessage, len(messages))
		for i, m := range messages {
			rendered[i] = htmlMessage{Message: m, HTML: renderMarkdown(m.Content)}
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"messages": rendered,
			"count":    len(rendered),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": messages,
		"count":    len(messages),
	})
}

func (s *Server) handleCurationRun(c *gin.Context) {
	rec, err := s.curator.RunBatch(c.Request.Context())
	if err != nil {
		resp := gin.H{
			"success": false,
			"error":   err.Error(),
		}
		if rec != nil {
			resp["run"] = rec
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run":     rec,
	})
}

func (s *Server) handleCurationStatus(c *gin.Context) {
	rec, err := s.db.GetLatestCurationRun()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run":     rec,
	})
}

func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTMLEscapeString(text)
	}
	return buf.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
