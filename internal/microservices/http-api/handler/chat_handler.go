package handler

import (
	"context"
	"net/http"
	"time"

	"cinecircle/internal/microservices/http-api/dto"
	"cinecircle/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler is the HTTP side of direct messaging. It drives the same
// MessageService as the real-time transports, so live participants get the
// same pushes either way.
type ChatHandler struct {
	svc service.MessageService
}

func NewChatHandler(svc service.MessageService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:partnerId/messages", h.Conversation)
	rg.POST("/messages", h.Send)
	rg.DELETE("/messages/:id/me", h.DeleteForMe)
	rg.DELETE("/messages/:id", h.DeleteForEveryone)
}

func (h *ChatHandler) Conversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 0)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	messages, err := h.svc.Conversation(ctx, userID, c.Param("partnerId"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

func (h *ChatHandler) Send(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	msg, err := h.svc.Send(ctx, service.SendMessageInput{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		Image:      req.Image,
		ReplyToID:  req.ReplyTo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) DeleteForMe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.DeleteForMe(ctx, messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TombstoneResponse{MessageID: messageID})
}

func (h *ChatHandler) DeleteForEveryone(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.DeleteForEveryone(ctx, messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TombstoneResponse{MessageID: messageID})
}
