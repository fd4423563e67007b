package api

import (
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EndPointHealth                = "/health"
	EndPointMetrics               = "/metrics"
	EndPointRecommendations       = "/recommendations"
	EndPointRecommendationsSimple = "/recommendations/simple"
	EndPointCacheStatus           = "/cache/status"
	EndPointCachePrefetch         = "/cache/prefetch"
	EndPointBiologicalRules       = "/biological-rules/:crop"
)

func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST(EndPointRecommendations, h.StreamRecommendation)
		api.POST(EndPointRecommendationsSimple, h.Recommend)
		api.GET(EndPointCacheStatus, h.CacheStatus)
		api.POST(EndPointCachePrefetch, h.Prefetch)
		api.GET(EndPointBiologicalRules, h.BiologicalRules)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	}
}
