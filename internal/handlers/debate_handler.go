package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imuhira/backend/internal/logger"
	"github.com/imuhira/backend/internal/metrics"
	"github.com/imuhira/backend/internal/models"
	"github.com/imuhira/backend/internal/repository"
)

// DebateStore is the persistence the debate endpoints need.
// *repository.DebateRepository implements it.
type DebateStore interface {
	Create(ctx context.Context, req *models.DebateRequest) (*models.DebateWithArguments, error)
	Update(ctx context.Context, id int64, req *models.DebateRequest) (*models.DebateWithArguments, string, error)
	GetByID(ctx context.Context, id int64) (*models.DebateWithArguments, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*models.DebateWithArguments, error)
	List(ctx context.Context) ([]models.DebateWithArguments, error)
	ListPublished(ctx context.Context, limit int) ([]models.DebateWithArguments, error)
	Delete(ctx context.Context, id int64) (*models.Debate, error)
}

// DebateCache caches public reads and fans out write events.
// *cache.RedisClient implements it; a nil DebateCache disables both.
type DebateCache interface {
	GetPublishedDebate(ctx context.Context, slug string) (*models.DebateWithArguments, error)
	CacheGeneration(ctx context.Context, slug string) (int64, error)
	SetPublishedDebate(ctx context.Context, debate *models.DebateWithArguments, generation int64) error
	InvalidateDebate(ctx context.Context, slugs ...string) error
	PublishDebateEvent(ctx context.Context, event models.WSMessage) error
}

const (
	defaultPublicLimit = 20
	maxPublicLimit     = 100
)

type DebateHandler struct {
	store      DebateStore
	cache      DebateCache
	log        *logger.Logger
	metrics    *metrics.Metrics
	production bool
}

func NewDebateHandler(store DebateStore, cache DebateCache, log *logger.Logger, m *metrics.Metrics, production bool) *DebateHandler {
	return &DebateHandler{
		store:      store,
		cache:      cache,
		log:        log.With("handler", "DebateHandler"),
		metrics:    m,
		production: production,
	}
}

// ListDebates returns every debate, newest first
func (h *DebateHandler) ListDebates(c *gin.Context) {
	debates, err := h.store.List(c.Request.Context())
	if err != nil {
		h.storageError(c, err, "Failed to fetch debates")
		return
	}
	c.JSON(http.StatusOK, debates)
}

// CreateDebate creates a debate with its arguments
func (h *DebateHandler) CreateDebate(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	debate, err := h.store.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "Failed to create debate")
		return
	}

	h.afterWrite(c.Request.Context(), models.EventForWrite(true, &debate.Debate), &debate.Debate)
	c.JSON(http.StatusCreated, debate)
}

// GetDebate returns one debate by id regardless of status
func (h *DebateHandler) GetDebate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	debate, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Failed to fetch debate")
		return
	}
	c.JSON(http.StatusOK, debate)
}

// UpdateDebate overwrites a debate and replaces its arguments
func (h *DebateHandler) UpdateDebate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	debate, previousSlug, err := h.store.Update(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err, "Failed to update debate")
		return
	}

	h.afterWrite(c.Request.Context(), models.EventForWrite(false, &debate.Debate), &debate.Debate, previousSlug)
	c.JSON(http.StatusOK, debate)
}

// DeleteDebate removes a debate and, through the cascade, its arguments
func (h *DebateHandler) DeleteDebate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	debate, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Failed to delete debate")
		return
	}

	h.afterWrite(c.Request.Context(), models.EventDebateDeleted, debate)
	c.JSON(http.StatusOK, gin.H{"message": "Debate deleted successfully"})
}

// GetPublicDebate serves a published debate by slug
func (h *DebateHandler) GetPublicDebate(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	// The generation is read before the store so an invalidation racing
	// this request keeps the loaded copy out of the cache
	fill := false
	var generation int64
	if h.cache != nil {
		cached, err := h.cache.GetPublishedDebate(ctx, slug)
		switch {
		case err != nil:
			h.metrics.CacheError()
			h.log.Warn("Debate cache read failed", "slug", slug, "error", err)
		case cached != nil:
			h.metrics.CacheHit()
			c.JSON(http.StatusOK, cached)
			return
		default:
			h.metrics.CacheMiss()
		}

		if generation, err = h.cache.CacheGeneration(ctx, slug); err != nil {
			h.log.Warn("Debate cache generation read failed", "slug", slug, "error", err)
		} else {
			fill = true
		}
	}

	debate, err := h.store.GetPublishedBySlug(ctx, slug)
	if err != nil {
		h.writeError(c, err, "Failed to fetch debate")
		return
	}

	if fill {
		if err := h.cache.SetPublishedDebate(ctx, debate, generation); err != nil {
			h.log.Warn("Debate cache write failed", "slug", slug, "error", err)
		}
	}
	c.JSON(http.StatusOK, debate)
}

// ListPublicDebates returns published debates for the front page
func (h *DebateHandler) ListPublicDebates(c *gin.Context) {
	limit := defaultPublicLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ErrorResponse(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		if n > maxPublicLimit {
			n = maxPublicLimit
		}
		limit = n
	}

	debates, err := h.store.ListPublished(c.Request.Context(), limit)
	if err != nil {
		h.storageError(c, err, "Failed to fetch debates")
		return
	}
	c.JSON(http.StatusOK, debates)
}

// MethodNotAllowed answers any method the debate routes do not serve
func MethodNotAllowed(c *gin.Context) {
	ErrorResponse(c, http.StatusMethodNotAllowed, "Method not allowed")
}

func (h *DebateHandler) bindRequest(c *gin.Context) (*models.DebateRequest, bool) {
	var req models.DebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := req.Validate(); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	req.Normalize()
	return &req, true
}

// parseID accepts ids in the range of the SERIAL primary key
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid debate ID")
		return 0, false
	}
	return id, true
}

func (h *DebateHandler) writeError(c *gin.Context, err error, baseMessage string) {
	switch {
	case errors.Is(err, repository.ErrDebateNotFound):
		ErrorResponse(c, http.StatusNotFound, "Debate not found")
	case errors.Is(err, repository.ErrSlugTaken):
		ErrorResponse(c, http.StatusConflict, "A debate with this slug already exists")
	default:
		h.storageError(c, err, baseMessage)
	}
}

func (h *DebateHandler) storageError(c *gin.Context, err error, baseMessage string) {
	h.log.Error(baseMessage, "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, FormatErrorResponse(err, baseMessage, h.production))
}

// afterWrite drops stale cache entries and announces the write on the live
// feed. Failures are logged; the write itself already succeeded.
func (h *DebateHandler) afterWrite(ctx context.Context, event string, debate *models.Debate, staleSlugs ...string) {
	if h.cache == nil {
		return
	}

	slugs := append([]string{debate.Slug}, staleSlugs...)
	if err := h.cache.InvalidateDebate(ctx, slugs...); err != nil {
		h.log.Warn("Debate cache invalidation failed", "debate_id", debate.ID, "error", err)
	}

	msg := models.WSMessage{
		Event:   event,
		Payload: models.DebateEvent{ID: debate.ID, Slug: debate.Slug, Status: debate.Status},
	}
	if err := h.cache.PublishDebateEvent(ctx, msg); err != nil {
		h.log.Warn("Debate event publish failed", "debate_id", debate.ID, "event", event, "error", err)
		return
	}
	h.metrics.EventPublished()
}
