package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"cinecircle/internal/microservices/realtime"
	"cinecircle/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

type HandlerOptions struct {
	AllowedOrigins []string // empty or "*" allows any origin
	SendBuffer     int
}

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 || slices.Contains(origins, "*") {
				return true
			}
			return slices.Contains(origins, origin)
		},
	}
}

// WSHandler upgrades an authenticated request and runs the client's pumps.
// ctx bounds the lifetime of every socket and is cancelled on shutdown.
func WSHandler(ctx context.Context, router *realtime.Router, opts HandlerOptions, logger *slog.Logger) gin.HandlerFunc {
	upgrader := newUpgrader(opts.AllowedOrigins)
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}

	return func(c *gin.Context) {
		// get user info from JWT middleware
		value, exists := c.Get("claims")
		claims, ok := value.(*shared.AuthClaims)
		if !exists || !ok || claims.UserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: user ID not found"})
			return
		}

		// Upgrade writes its own error response on failure
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws_upgrade_failed", "user_id", claims.UserID, "error", err)
			return
		}

		client := NewClient(conn, router, opts.SendBuffer, logger)
		client.session = router.Open(client, claims)

		go client.WritePump()
		go client.ReadPump(ctx)
	}
}
