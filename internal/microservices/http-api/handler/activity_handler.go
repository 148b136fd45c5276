package handler

import (
	"context"
	"net/http"
	"time"

	"cinecircle/internal/microservices/http-api/dto"
	"cinecircle/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// ActivityHandler receives review activity and fans it out as notifications.
// The actor is always the authenticated user.
type ActivityHandler struct {
	svc service.NotificationService
}

func NewActivityHandler(svc service.NotificationService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

func (h *ActivityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reviews/:id/like", h.LikeReview)
	rg.POST("/reviews/:id/comment", h.CommentReview)
}

func (h *ActivityHandler) LikeReview(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.LikeReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	n, err := h.svc.NotifyLike(ctx, service.LikeActivity{
		ActorID:       userID,
		ReviewID:      c.Param("id"),
		ReviewOwnerID: req.ReviewOwnerID,
		MovieTitle:    req.MovieTitle,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// nil when the actor liked their own review
	notified := 0
	if n != nil {
		notified = 1
	}
	c.JSON(http.StatusAccepted, gin.H{"notified": notified})
}

func (h *ActivityHandler) CommentReview(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.CommentReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	created, err := h.svc.NotifyComment(ctx, service.CommentActivity{
		ActorID:        userID,
		ReviewID:       c.Param("id"),
		ReviewOwnerID:  req.ReviewOwnerID,
		MovieTitle:     req.MovieTitle,
		Text:           req.Text,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"notified": len(created)})
}
