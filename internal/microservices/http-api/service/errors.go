package service

import (
	"errors"

	"cinecircle/internal/shared"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrEmptyMessage         = errors.New("message must have text or an image")
	ErrMissingParticipant   = errors.New("sender and receiver are required")
	ErrInvalidReply         = errors.New("reply target is not part of this conversation")
	ErrEmptyReaction        = errors.New("emoji is required")
	ErrInvalidToken         = errors.New("invalid token")
)

// Deliverer pushes an event to every live connection of a user and reports
// whether the user had any. Offline users are dropped silently.
type Deliverer interface {
	Deliver(userID string, event shared.EventType, payload any) bool
}
