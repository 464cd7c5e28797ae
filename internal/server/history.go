package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handlePredictions handles GET /api/predictions?limit=N.
func (s *Server) handlePredictions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	predictions, err := s.config.Store.Predictions().ListRecent(limit)
	if err != nil {
		s.logger.Error("failed to list predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list predictions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"predictions": predictions})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.config.Store.Predictions().Stats()
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
