package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pairline/pairline-backend/internal/service"
)

type ParticipantHandler struct {
	poolService     *service.PoolService
	pairingService  *service.PairingService
	livenessService *service.LivenessService
}

func NewParticipantHandler(
	poolService *service.PoolService,
	pairingService *service.PairingService,
	livenessService *service.LivenessService,
) *ParticipantHandler {
	return &ParticipantHandler{
		poolService:     poolService,
		pairingService:  pairingService,
		livenessService: livenessService,
	}
}

// Heartbeat 참가자 생존 신호
func (h *ParticipantHandler) Heartbeat(c *gin.Context) {
	id := c.Param("id")

	if err := h.livenessService.Heartbeat(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record heartbeat",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participantId": id,
		"status":        "ok",
	})
}

// EnterPool 대기열 입장
func (h *ParticipantHandler) EnterPool(c *gin.Context) {
	id := c.Param("id")

	err := h.poolService.Enter(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOffline):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "offline",
			})
		case errors.Is(err, service.ErrInCooldown):
			c.JSON(http.StatusConflict, gin.H{
				"error": "in_cooldown",
			})
		case errors.Is(err, service.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{
				"error": "invalid_state",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to enter pool",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participantId": id,
		"state":         "waiting",
	})
}

// LeavePool 대기열 퇴장 (멱등)
func (h *ParticipantHandler) LeavePool(c *gin.Context) {
	id := c.Param("id")

	if err := h.poolService.Leave(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to leave pool",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participantId": id,
		"state":         "idle",
	})
}

// RequestPair 즉시 페어링 시도. 상대가 없으면 204를 반환하고
// 백그라운드 스윕이 이어서 시도한다.
func (h *ParticipantHandler) RequestPair(c *gin.Context) {
	id := c.Param("id")

	sessionID, err := h.pairingService.TryPair(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoMatch) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to attempt pairing",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
	})
}

// GetStatus 참가자 현재 상태 조회
func (h *ParticipantHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")

	view, err := h.poolService.Status(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get status",
		})
		return
	}

	resp := gin.H{
		"participantId": view.ParticipantID,
		"state":         view.LifecycleState,
	}
	if view.SessionID != nil {
		resp["sessionId"] = *view.SessionID
	}
	if view.PartnerID != nil {
		resp["partnerId"] = *view.PartnerID
	}
	if view.VoteWindowEnd != nil {
		resp["voteWindowEnd"] = *view.VoteWindowEnd
	}

	c.JSON(http.StatusOK, resp)
}
