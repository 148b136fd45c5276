package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cinecircle/internal/microservices/http-api/dto"

	"github.com/gin-gonic/gin"
)

// OnlineChecker answers from the in-process connection registry.
type OnlineChecker interface {
	IsOnline(userID string) bool
}

// PresenceStore is the out-of-process presence mirror.
type PresenceStore interface {
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
	OnlineUsers(ctx context.Context) ([]string, error)
}

type PresenceHandler struct {
	live  OnlineChecker
	store PresenceStore
}

func NewPresenceHandler(live OnlineChecker, store PresenceStore) *PresenceHandler {
	return &PresenceHandler{live: live, store: store}
}

func (h *PresenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/online", h.Online)
	rg.GET("/:id/presence", h.Get)
}

// Get reports whether a user is online; lastSeen is best effort.
func (h *PresenceHandler) Get(c *gin.Context) {
	userID := c.Param("id")
	resp := dto.PresenceResponse{
		UserID: userID,
		Online: h.live.IsOnline(userID),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ts, found, err := h.store.LastSeen(ctx, userID)
	if err != nil {
		slog.Warn("presence_last_seen_failed", "user_id", userID, "error", err)
	} else if found {
		resp.LastSeen = &ts
	}
	c.JSON(http.StatusOK, resp)
}

// Online lists users the presence mirror reports online across instances
func (h *PresenceHandler) Online(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	users, err := h.store.OnlineUsers(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}
