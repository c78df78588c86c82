package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pairline/pairline-backend/internal/service"
)

type PoolHandler struct {
	poolService *service.PoolService
}

func NewPoolHandler(poolService *service.PoolService) *PoolHandler {
	return &PoolHandler{
		poolService: poolService,
	}
}

// GetStats 운영용 대기열 통계 조회
func (h *PoolHandler) GetStats(c *gin.Context) {
	stats, err := h.poolService.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get pool stats",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"waiting":        stats.Waiting,
		"activeSessions": stats.ActiveSessions,
	})
}
