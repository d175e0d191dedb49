// Package httpapi exposes a small HTTP surface over a sendero Dispatcher and
// Queue for monitoring and operational use: status snapshot, queue listing
// with payload redaction, enqueue/remove, and Prometheus metrics.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/senderokit/sendero"
)

// EnqueueRequest is the POST /v1/messages payload.
type EnqueueRequest struct {
	To          string            `json:"to" binding:"required"`
	Subject     string            `json:"subject" binding:"required"`
	Body        string            `json:"body" binding:"required"`
	From        string            `json:"from"`
	Metadata    map[string]string `json:"metadata"`
	Priority    int               `json:"priority"`
	MaxAttempts int               `json:"maxAttempts"`
}

// Handler serves the API for one dispatcher/queue pair.
type Handler struct {
	dispatcher *sendero.Dispatcher
	queue      *sendero.Queue
}

// NewHandler creates a handler. queue may be nil; queue routes then return
// 404.
func NewHandler(dispatcher *sendero.Dispatcher, queue *sendero.Queue) *Handler {
	return &Handler{dispatcher: dispatcher, queue: queue}
}

// Router returns a gin engine with all routes mounted.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/v1/status", h.getStatus)
	r.POST("/v1/messages", h.postMessage)

	if h.queue != nil {
		r.GET("/v1/queue/items", h.listItems)
		r.GET("/v1/queue/items/:id", h.getItem)
		r.DELETE("/v1/queue/items/:id", h.removeItem)
		r.GET("/v1/queue/stats", h.getStats)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// getStatus reports provider health, affinity, rate capacity and cache size.
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatcher.Status())
}

// postMessage enqueues a request when a queue is attached, otherwise
// dispatches synchronously.
func (h *Handler) postMessage(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request := sendero.Request{
		To:       req.To,
		Subject:  req.Subject,
		Body:     req.Body,
		From:     req.From,
		Metadata: req.Metadata,
	}

	if h.queue != nil {
		id, err := h.queue.Enqueue(request, sendero.EnqueueOptions{
			Priority:    req.Priority,
			MaxAttempts: req.MaxAttempts,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id})
		return
	}

	result, err := h.dispatcher.Send(c.Request.Context(), request)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// listItems lists queue contents filtered by status and count limit.
func (h *Handler) listItems(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		Limit  int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := h.queue.Items(sendero.ItemFilter{
		Status: sendero.ItemStatus(query.Status),
		Limit:  query.Limit,
	})
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *Handler) getItem(c *gin.Context) {
	item, ok := h.queue.Item(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) removeItem(c *gin.Context) {
	if !h.queue.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found or processing"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Stats())
}

// statusForError maps the dispatch error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var dispatchErr *sendero.DispatchError
	if errors.As(err, &dispatchErr) {
		switch dispatchErr.Type {
		case sendero.ErrorTypeValidation:
			return http.StatusBadRequest
		case sendero.ErrorTypeRateLimit:
			return http.StatusTooManyRequests
		case sendero.ErrorTypeAllProvidersFailed:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}
