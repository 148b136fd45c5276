package handler_test

import (
	"context"
	"time"

	"cinecircle/internal/microservices/http-api/models"
	"cinecircle/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

// --- MOCK SERVICES ---

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Notify(ctx context.Context, in service.NotifyInput) (*models.Notification, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) NotifyLike(ctx context.Context, activity service.LikeActivity) (*models.Notification, error) {
	args := m.Called(ctx, activity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) NotifyComment(ctx context.Context, activity service.CommentActivity) ([]models.Notification, error) {
	args := m.Called(ctx, activity)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationService) List(ctx context.Context, userID string, page, limit int) (*service.NotificationPage, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.NotificationPage), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, in service.SendMessageInput) (*models.Message, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) MarkSeen(ctx context.Context, partnerID, viewerID string) (int64, error) {
	args := m.Called(ctx, partnerID, viewerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageService) Edit(ctx context.Context, messageID, actorID, newText string) (*models.Message, error) {
	args := m.Called(ctx, messageID, actorID, newText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*models.Message, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) TogglePin(ctx context.Context, messageID, actorID string) (*models.Message, error) {
	args := m.Called(ctx, messageID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) DeleteForMe(ctx context.Context, messageID, userID string) error {
	return m.Called(ctx, messageID, userID).Error(0)
}

func (m *MockMessageService) DeleteForEveryone(ctx context.Context, messageID, requesterID string) error {
	return m.Called(ctx, messageID, requesterID).Error(0)
}

func (m *MockMessageService) Conversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, userID, partnerID, limit)
	return args.Get(0).([]models.Message), args.Error(1)
}

type stubOnline map[string]bool

func (s stubOnline) IsOnline(userID string) bool { return s[userID] }

type MockPresenceStore struct {
	mock.Mock
}

func (m *MockPresenceStore) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockPresenceStore) OnlineUsers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

// --- SETUP ---

// mockAuthMiddleware stands in for AuthMiddleware; an empty id leaves the
// request unauthenticated.
func mockAuthMiddleware(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set("userID", userID)
		}
		c.Next()
	}
}

func newTestEngine(userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mockAuthMiddleware(userID))
	return r
}
