package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chatcli/internal/models"
	"chatcli/internal/service/ai"
	"chatcli/internal/session"
	"chatcli/internal/storage"
)

const turnTimeout = 2 * time.Minute

// ChatSession is the single conversation served over HTTP.
type ChatSession interface {
	ID() string
	Send(ctx context.Context, text string) (*session.TurnResult, error)
	History() []models.Message
	Stats() session.Stats
}

// TurnLedger reports what was recorded for a session.
type TurnLedger interface {
	Summary(ctx context.Context, sessionID string) (storage.Summary, error)
}

// Handler wires HTTP routes to one chat session. Turns are serialised by the session.
type Handler struct {
	chat   ChatSession
	ledger TurnLedger
}

// NewHandler constructs a Handler. ledger may be nil.
func NewHandler(chat ChatSession, ledger TurnLedger) *Handler {
	return &Handler{chat: chat, ledger: ledger}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/chat", h.captureInput)
	api.GET("/history", h.getHistory)
	api.GET("/stats", h.getStats)
}

type inputRequest struct {
	Content string `json:"content"`
}

func (h *Handler) captureInput(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), turnTimeout)
	defer cancel()

	result, err := h.chat.Send(ctx, req.Content)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reply":          result.Reply,
		"usage":          result.Usage,
		"context_tokens": result.ContextTokens,
		"cost":           result.Cost.String(),
		"priced":         result.Priced,
		"session_cost":   result.SessionCost.String(),
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	messages := h.chat.History()
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": h.chat.ID(),
		"messages":   messages,
	})
}

func (h *Handler) getStats(c *gin.Context) {
	stats := h.chat.Stats()
	payload := gin.H{
		"session_id":        stats.ID,
		"model":             stats.Model,
		"state":             stats.State,
		"turns":             stats.Turns,
		"messages":          stats.Messages,
		"prompt_tokens":     stats.PromptTokens,
		"completion_tokens": stats.CompletionTokens,
		"cost":              stats.Cost.String(),
	}
	if h.ledger != nil {
		sum, err := h.ledger.Summary(c.Request.Context(), stats.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		payload["ledger"] = gin.H{
			"turns":          sum.Turns,
			"cost":           sum.Cost.String(),
			"unpriced_turns": sum.UnpricedTurns,
		}
	}
	c.JSON(http.StatusOK, payload)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrContextOverflow):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrExited):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ai.ErrRetriesExhausted), errors.Is(err, ai.ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
