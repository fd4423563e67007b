package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"harvest_service/internal/core"
	"harvest_service/internal/domain/model"
)

const (
	maxPrefetchLocations = 100
	defaultPrefetchLimit = 4
)

// Recommender produces recommendations, streamed or whole.
type Recommender interface {
	Stream(ctx context.Context, req model.RecommendationRequest) (<-chan core.Fragment, error)
	Recommend(ctx context.Context, req model.RecommendationRequest) (*core.Result, error)
}

type CacheInspector interface {
	Status() core.CacheStatus
}

type Prefetcher interface {
	Prefetch(ctx context.Context, locs []model.Location, concurrency int) []core.PrefetchResult
}

type Handler struct {
	recommender Recommender
	cache       CacheInspector
	prefetcher  Prefetcher
	rules       *core.RuleStore
}

func NewHandler(recommender Recommender, cache CacheInspector, prefetcher Prefetcher, rules *core.RuleStore) *Handler {
	return &Handler{recommender: recommender, cache: cache, prefetcher: prefetcher, rules: rules}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "harvest-service",
		"crops":   h.rules.Crops(),
	})
}

// StreamRecommendation writes the recommendation as Server-Sent Events, one
// event per fragment, named by fragment type.
func (h *Handler) StreamRecommendation(c *gin.Context) {
	var req model.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	fragments, err := h.recommender.Stream(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for f := range fragments {
		c.SSEvent(string(f.Type), f)
		c.Writer.Flush()
	}
}

func (h *Handler) Recommend(c *gin.Context) {
	var req model.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	res, err := h.recommender.Recommend(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Status())
}

type PrefetchRequest struct {
	Locations   []model.Location `json:"locations"`
	Concurrency int              `json:"concurrency,omitempty"`
}

type PrefetchResponse struct {
	Requested int                   `json:"requested"`
	Failed    int                   `json:"failed"`
	Results   []core.PrefetchResult `json:"results"`
}

func (h *Handler) Prefetch(c *gin.Context) {
	var req PrefetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if len(req.Locations) == 0 || len(req.Locations) > maxPrefetchLocations {
		c.JSON(http.StatusBadRequest, gin.H{"error": "locations must contain between 1 and 100 entries"})
		return
	}
	for _, loc := range req.Locations {
		if err := loc.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Concurrency <= 0 {
		req.Concurrency = defaultPrefetchLimit
	}

	results := h.prefetcher.Prefetch(c.Request.Context(), req.Locations, req.Concurrency)
	resp := PrefetchResponse{Requested: len(req.Locations), Results: results}
	for _, r := range results {
		if r.Error != "" {
			resp.Failed++
		}
	}
	c.JSON(http.StatusOK, resp)
}

type RulesResponse struct {
	Crop    string               `json:"crop"`
	Rules   []model.SpoilageRule `json:"rules"`
	Sources []model.Source       `json:"sources"`
}

func (h *Handler) BiologicalRules(c *gin.Context) {
	crop := strings.ToLower(strings.TrimSpace(c.Param("crop")))
	if !h.rules.HasCrop(crop) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no biological rules for crop " + crop})
		return
	}

	rules := h.rules.Rules(crop)
	seen := make(map[string]struct{})
	sources := make([]model.Source, 0)
	for _, r := range rules {
		if _, ok := seen[r.SourceID]; ok {
			continue
		}
		seen[r.SourceID] = struct{}{}
		if src, ok := h.rules.Source(r.SourceID); ok {
			sources = append(sources, src)
		}
	}
	c.JSON(http.StatusOK, RulesResponse{Crop: crop, Rules: rules, Sources: sources})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case model.IsConfigurationError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("recommendation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
