package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"
)

// HandleQuery answers one question against the indexed corpus.
func HandleQuery(querySvc *services.QueryService, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}

		result, err := querySvc.Query(c.Request.Context(), &req)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		if metrics != nil {
			metrics.RecordQuery(string(result.Confidence.Level), result.FromCache, result.ResponseTime)
			metrics.RecordCacheLookup(result.FromCache)
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleCacheStats exposes query cache hit/miss counters.
func HandleCacheStats(querySvc *services.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, querySvc.CacheStats())
	}
}
