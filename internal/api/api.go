// Package api exposes the message service over HTTP with gin.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/celerix-dev/celerix-messages/internal/messages"
	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/record"
)

// HeaderDegraded is set on list responses served empty because the store failed.
const HeaderDegraded = "X-Result-Degraded"

const defaultLimit = 10

// MessageService is what the handlers need from messages.Service.
type MessageService interface {
	ListMessages(ctx context.Context, q messages.ListQuery) messages.ListResult
	GetMessage(ctx context.Context, id string) (record.Message, error)
	CreateMessage(ctx context.Context, in messages.CreateInput) (record.Message, error)
	UpdateMessage(ctx context.Context, id string, patch messages.Patch) (record.Message, error)
	DeleteMessage(ctx context.Context, id string) (messages.DeleteResult, error)
	ListDistinctTypes(ctx context.Context) []string
	ListDistinctDates(ctx context.Context) []string
	SeedTestData(ctx context.Context) (messages.SeedReport, error)
	DatabaseInfo(ctx context.Context) (messages.DatabaseInfo, error)
	Repair(ctx context.Context) (messages.RepairReport, error)
}

type Handler struct {
	Messages MessageService
	log      *logger.Logger
}

func NewHandler(svc MessageService, log *logger.Logger) *Handler {
	return &Handler{Messages: svc, log: log.With("component", "api")}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/healthz", h.Health)

	r.GET("/messages/types", h.ListTypes)
	r.GET("/messages/dates", h.ListDates)
	r.GET("/messages", h.ListMessages)
	r.GET("/messages/:id", h.GetMessage)
	r.POST("/messages", h.CreateMessage)
	r.PUT("/messages/:id", h.UpdateMessage)
	r.DELETE("/messages/:id", h.DeleteMessage)

	r.GET("/setup-test-data", h.SeedTestData)
	r.GET("/db-config", h.DatabaseInfo)
	r.GET("/repair-messages", h.Repair)
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Message Database API"})
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handler) ListTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.Messages.ListDistinctTypes(c.Request.Context()))
}

func (h *Handler) ListDates(c *gin.Context) {
	c.JSON(http.StatusOK, h.Messages.ListDistinctDates(c.Request.Context()))
}

func (h *Handler) ListMessages(c *gin.Context) {
	skip, err := nonNegative(c, "skip", 0)
	if err != nil {
		h.respondError(c, err)
		return
	}
	limit, err := nonNegative(c, "limit", defaultLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	q := messages.ListQuery{Skip: skip, Limit: limit}
	if v, ok := c.GetQuery("type"); ok {
		q.Type = &v
	}
	if v, ok := c.GetQuery("date"); ok {
		q.Date = &v
	}

	res := h.Messages.ListMessages(c.Request.Context(), q)
	if res.Degraded() {
		c.Header(HeaderDegraded, "true")
	}
	c.JSON(http.StatusOK, res.Items)
}

func (h *Handler) GetMessage(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	msg, err := h.Messages.GetMessage(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) CreateMessage(c *gin.Context) {
	var input struct {
		Date    *string `json:"date" binding:"required"`
		Message *string `json:"message" binding:"required"`
		Type    *string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, bindingError(err))
		return
	}

	msg, err := h.Messages.CreateMessage(c.Request.Context(), messages.CreateInput{
		Date:    input.Date,
		Message: input.Message,
		Type:    input.Type,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) UpdateMessage(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var input struct {
		Date    *string `json:"date"`
		Message *string `json:"message"`
		Type    *string `json:"type"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, bindingError(err))
		return
	}

	msg, err := h.Messages.UpdateMessage(c.Request.Context(), id, messages.Patch{
		Date:    input.Date,
		Message: input.Message,
		Type:    input.Type,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	res, err := h.Messages.DeleteMessage(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SeedTestData(c *gin.Context) {
	rep, err := h.Messages.SeedTestData(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) DatabaseInfo(c *gin.Context) {
	info, err := h.Messages.DatabaseInfo(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) Repair(c *gin.Context) {
	rep, err := h.Messages.Repair(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// pathID checks the :id segment before the service sees it.
func (h *Handler) pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !primitive.IsValidObjectID(id) {
		h.respondError(c, fmt.Errorf("%w: %q", messages.ErrInvalidIdentifier, id))
		return "", false
	}
	return id, true
}

func nonNegative(c *gin.Context, name string, def int64) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", errInvalidQuery, name, raw)
	}
	return n, nil
}
