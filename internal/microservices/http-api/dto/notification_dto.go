package dto

import (
	"time"

	"cinecircle/internal/microservices/http-api/models"
)

type SenderSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// NotificationResponse is a notification as rendered in the bell dropdown
type NotificationResponse struct {
	ID         string                  `json:"id"`
	Type       models.NotificationType `json:"type"`
	ReviewID   string                  `json:"review_id"`
	MovieTitle string                  `json:"movie_title"`
	Read       bool                    `json:"read"`
	CreatedAt  time.Time               `json:"created_at"`
	Sender     *SenderSummary          `json:"sender,omitempty"`
}

func FromModelToNotificationResponse(n *models.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:         n.ID,
		Type:       n.Type,
		ReviewID:   n.ReviewID,
		MovieTitle: n.MovieTitle,
		Read:       n.Read,
		CreatedAt:  n.CreatedAt,
	}
	if n.Sender != nil {
		resp.Sender = &SenderSummary{ID: n.Sender.ID, Name: n.Sender.Name, Avatar: n.Sender.Avatar}
	}
	return resp
}

// NotificationListResponse for returning one page of notifications, newest first
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
	Total         int64                  `json:"total"`
	HasMore       bool                   `json:"hasMore"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// PresenceResponse reports live presence plus the last recorded transition.
type PresenceResponse struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
