package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pairline/pairline-backend/internal/models"
	"github.com/pairline/pairline-backend/internal/service"
)

type SessionHandler struct {
	outcomeService *service.OutcomeService
}

func NewSessionHandler(outcomeService *service.OutcomeService) *SessionHandler {
	return &SessionHandler{
		outcomeService: outcomeService,
	}
}

type castVoteRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
	Vote          string `json:"vote" binding:"required"`
}

// CastVote 세션 투표 제출
func (h *SessionHandler) CastVote(c *gin.Context) {
	sessionID := c.Param("id")

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	outcome, err := h.outcomeService.CastVote(
		c.Request.Context(), sessionID, req.ParticipantID, models.Vote(req.Vote))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidVote):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid_vote",
			})
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "session_not_found",
			})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{
				"error": "not_participant",
			})
		case errors.Is(err, service.ErrAlreadyVoted):
			c.JSON(http.StatusConflict, gin.H{
				"error": "already_voted",
			})
		case errors.Is(err, service.ErrWindowExpired):
			c.JSON(http.StatusGone, gin.H{
				"error": "window_expired",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to record vote",
			})
		}
		return
	}

	resp := gin.H{
		"sessionId": sessionID,
		"recorded":  true,
	}
	if outcome != nil {
		resp["outcome"] = *outcome
	}

	c.JSON(http.StatusOK, resp)
}

// Release both_yes 세션 명시적 종료
func (h *SessionHandler) Release(c *gin.Context) {
	sessionID := c.Param("id")

	err := h.outcomeService.Release(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "session_not_found",
			})
		case errors.Is(err, service.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{
				"error": "invalid_state",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to release session",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"status":    "released",
	})
}
