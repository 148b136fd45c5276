package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cinecircle/internal/microservices/http-api/models"
	"cinecircle/internal/microservices/http-api/repository"
	"cinecircle/internal/shared"

	"github.com/google/uuid"
)

const (
	defaultNotificationPageSize = 10
	maxNotificationPageSize     = 50
)

type NotifyInput struct {
	RecipientID string
	SenderID    string
	Type        models.NotificationType
	ReviewID    string
	MovieTitle  string
}

// LikeActivity is a like on someone's review.
type LikeActivity struct {
	ActorID       string
	ReviewID      string
	ReviewOwnerID string
	MovieTitle    string
}

// CommentActivity is a comment on someone's review. ParticipantIDs lists users
// already in the thread; they are mentionable along with the actor's friends.
type CommentActivity struct {
	ActorID        string
	ReviewID       string
	ReviewOwnerID  string
	MovieTitle     string
	Text           string
	ParticipantIDs []string
}

type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
	Total         int64                 `json:"total"`
	HasMore       bool                  `json:"hasMore"`
}

type NotificationService interface {
	// Notify persists one notification and pushes it with the fresh unread count.
	// Self-notifications and blank ids yield (nil, nil).
	Notify(ctx context.Context, in NotifyInput) (*models.Notification, error)
	NotifyLike(ctx context.Context, activity LikeActivity) (*models.Notification, error)
	NotifyComment(ctx context.Context, activity CommentActivity) ([]models.Notification, error)
	List(ctx context.Context, userID string, page, limit int) (*NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) error
}

type notificationService struct {
	repo      repository.NotificationRepository
	users     repository.UserRepository
	deliverer Deliverer
	logger    *slog.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	deliverer Deliverer,
	logger *slog.Logger,
) NotificationService {
	return &notificationService{
		repo:      repo,
		users:     users,
		deliverer: deliverer,
		logger:    logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	recipientID := strings.TrimSpace(in.RecipientID)
	senderID := strings.TrimSpace(in.SenderID)
	if recipientID == "" || senderID == "" || recipientID == senderID {
		return nil, nil
	}

	notification := &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        in.Type,
		ReviewID:    in.ReviewID,
		MovieTitle:  in.MovieTitle,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	// reload for the populated sender; the bare row is good enough if that fails
	if populated, err := s.repo.GetByID(ctx, notification.ID); err == nil {
		notification = populated
	} else {
		s.logger.Warn("notification_reload_failed", "notification_id", notification.ID, "error", err)
	}

	// the row is durable at this point, so a failed count only skips the push
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		s.logger.Error("unread_count_failed", "user_id", recipientID, "error", err)
		return notification, nil
	}

	s.deliverer.Deliver(recipientID, shared.EventNotificationNew, shared.NotificationPush{
		Notification: notification,
		UnreadCount:  count,
	})
	s.logger.Info("notification_created",
		"notification_id", notification.ID,
		"type", notification.Type,
		"recipient_id", recipientID,
		"unread_count", count,
	)
	return notification, nil
}

func (s *notificationService) NotifyLike(ctx context.Context, activity LikeActivity) (*models.Notification, error) {
	return s.Notify(ctx, NotifyInput{
		RecipientID: activity.ReviewOwnerID,
		SenderID:    activity.ActorID,
		Type:        models.NotificationLike,
		ReviewID:    activity.ReviewID,
		MovieTitle:  activity.MovieTitle,
	})
}

// NotifyComment tells the review owner about the comment, then notifies every
// resolvable @mention once. The owner and the actor are never mentioned.
// Only the owner's notification can fail the call; mention failures are
// logged so a retried request never duplicates the owner's row.
func (s *notificationService) NotifyComment(ctx context.Context, activity CommentActivity) ([]models.Notification, error) {
	mentioned := s.resolveMentions(ctx, activity)

	var created []models.Notification
	owner, err := s.Notify(ctx, NotifyInput{
		RecipientID: activity.ReviewOwnerID,
		SenderID:    activity.ActorID,
		Type:        models.NotificationComment,
		ReviewID:    activity.ReviewID,
		MovieTitle:  activity.MovieTitle,
	})
	if err != nil {
		return nil, err
	}
	if owner != nil {
		created = append(created, *owner)
	}

	for _, recipientID := range mentioned {
		n, err := s.Notify(ctx, NotifyInput{
			RecipientID: recipientID,
			SenderID:    activity.ActorID,
			Type:        models.NotificationMention,
			ReviewID:    activity.ReviewID,
			MovieTitle:  activity.MovieTitle,
		})
		if err != nil {
			s.logger.Warn("mention_notify_failed",
				"review_id", activity.ReviewID,
				"recipient_id", recipientID,
				"error", err,
			)
			continue
		}
		if n != nil {
			created = append(created, *n)
		}
	}
	return created, nil
}

// resolveMentions returns the recipients of the @mentions in the comment.
// A failed directory lookup leaves the mentions unresolved.
func (s *notificationService) resolveMentions(ctx context.Context, activity CommentActivity) []string {
	names := ExtractMentions(activity.Text)
	if len(names) == 0 {
		return nil
	}
	directory, err := s.mentionDirectory(ctx, activity)
	if err != nil {
		s.logger.Warn("mention_lookup_failed", "review_id", activity.ReviewID, "error", err)
		return nil
	}
	return directory.Resolve(names, activity.ReviewOwnerID, activity.ActorID)
}

// mentionDirectory collects the names the actor can mention: themself, their
// friends, and whoever already takes part in the thread.
func (s *notificationService) mentionDirectory(ctx context.Context, activity CommentActivity) (MentionDirectory, error) {
	var self []models.User
	actor, err := s.users.FindByID(ctx, activity.ActorID)
	switch {
	case err == nil:
		self = append(self, *actor)
	case !errors.Is(err, repository.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}

	friends, err := s.users.ListFriends(ctx, activity.ActorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load friends: %w", err)
	}

	ids := append([]string{activity.ReviewOwnerID}, activity.ParticipantIDs...)
	participants, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	return NewMentionDirectory(self, friends, participants), nil
}

func (s *notificationService) List(ctx context.Context, userID string, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxNotificationPageSize {
		limit = defaultNotificationPageSize
	}
	offset := (page - 1) * limit

	notifications, total, err := s.repo.ListByRecipient(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	return &NotificationPage{
		Notifications: notifications,
		Page:          page,
		Limit:         limit,
		Total:         total,
		HasMore:       int64(offset+len(notifications)) < total,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	notification, err := s.repo.GetByID(ctx, notificationID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	// Verify notification belongs to user
	if notification.RecipientID != userID {
		return nil, ErrPermissionDenied
	}

	if !notification.Read {
		if err := s.repo.MarkAsRead(ctx, notification.ID); err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				return nil, ErrNotificationNotFound
			}
			return nil, fmt.Errorf("failed to mark notification read: %w", err)
		}
		notification.Read = true
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	s.deliverer.Deliver(userID, shared.EventNotificationUnread, shared.UnreadCountSync{UnreadCount: count})
	return notification, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	changed, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	s.logger.Debug("notifications_marked_read", "user_id", userID, "count", changed)
	s.deliverer.Deliver(userID, shared.EventNotificationUnread, shared.UnreadCountSync{UnreadCount: 0})
	return nil
}
