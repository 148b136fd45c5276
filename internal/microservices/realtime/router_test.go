package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cinecircle/internal/microservices/http-api/models"
	"cinecircle/internal/microservices/http-api/service"
	"cinecircle/internal/shared"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, in service.SendMessageInput) (*models.Message, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) MarkSeen(ctx context.Context, partnerID, viewerID string) (int64, error) {
	args := m.Called(partnerID, viewerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageService) Edit(ctx context.Context, messageID, actorID, newText string) (*models.Message, error) {
	args := m.Called(messageID, actorID, newText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*models.Message, error) {
	args := m.Called(messageID, userID, emoji)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) TogglePin(ctx context.Context, messageID, actorID string) (*models.Message, error) {
	args := m.Called(messageID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) DeleteForMe(ctx context.Context, messageID, userID string) error {
	return m.Called(messageID, userID).Error(0)
}

func (m *MockMessageService) DeleteForEveryone(ctx context.Context, messageID, requesterID string) error {
	return m.Called(messageID, requesterID).Error(0)
}

func (m *MockMessageService) Conversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error) {
	args := m.Called(userID, partnerID, limit)
	return args.Get(0).([]models.Message), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Notify(ctx context.Context, in service.NotifyInput) (*models.Notification, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) NotifyLike(ctx context.Context, a service.LikeActivity) (*models.Notification, error) {
	args := m.Called(a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) NotifyComment(ctx context.Context, a service.CommentActivity) ([]models.Notification, error) {
	args := m.Called(a)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationService) List(ctx context.Context, userID string, page, limit int) (*service.NotificationPage, error) {
	args := m.Called(userID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.NotificationPage), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	args := m.Called(userID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	return m.Called(userID).Error(0)
}

type routerFixture struct {
	router        *Router
	registry      *Registry
	messages      *MockMessageService
	notifications *MockNotificationService
}

func newRouterFixture(t *testing.T, opts RouterOptions) *routerFixture {
	logger := slogt.New(t)
	registry := NewRegistry(logger)
	dispatcher := NewDispatcher(registry, logger)
	presence := NewPresence(registry, dispatcher, nil, logger)
	messages := new(MockMessageService)
	notifications := new(MockNotificationService)
	return &routerFixture{
		router:        NewRouter(presence, dispatcher, messages, notifications, opts, logger),
		registry:      registry,
		messages:      messages,
		notifications: notifications,
	}
}

func frame(t *testing.T, event shared.EventType, ack string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(shared.Envelope{Type: event, Ack: ack, Data: raw})
	require.NoError(t, err)
	return out
}

func lastError(t *testing.T, c *fakeConn) (shared.ErrorPayload, string) {
	t.Helper()
	errs := c.eventsOf(t, shared.EventError)
	require.NotEmpty(t, errs, "expected an error event")
	var p shared.ErrorPayload
	require.NoError(t, json.Unmarshal(errs[len(errs)-1].Data, &p))
	return p, errs[len(errs)-1].Ack
}

func TestRouter_AddUserRegistersAndSyncsUnreadCount(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	f.notifications.On("UnreadCount", "A").Return(int64(3), nil)
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})

	f.router.Handle(context.Background(), s, frame(t, shared.EventAddUser, "1", "A"))

	assert.True(t, s.Registered())
	assert.True(t, f.registry.IsOnline("A"))

	sync := conn.eventsOf(t, shared.EventNotificationUnread)
	require.Len(t, sync, 1)
	assert.JSONEq(t, `{"unreadCount":3}`, string(sync[0].Data))

	acks := conn.eventsOf(t, shared.EventAck)
	require.Len(t, acks, 1)
	assert.Equal(t, "1", acks[0].Ack)
	assert.JSONEq(t, `true`, string(acks[0].Data))
}

func TestRouter_AddUserIdentityMismatch(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})

	f.router.Handle(context.Background(), s, frame(t, shared.EventAddUser, "7", "B"))

	p, ack := lastError(t, conn)
	assert.Equal(t, codePermissionDenied, p.Code)
	assert.Equal(t, "7", ack)
	assert.False(t, f.registry.IsOnline("B"))
	assert.False(t, s.Registered())
}

func TestRouter_SendMessageUsesSessionIdentity(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})

	sent := &models.Message{ID: "m1", SenderID: "A", ReceiverID: "B", Text: "hi"}
	f.messages.On("Send", service.SendMessageInput{SenderID: "A", ReceiverID: "B", Text: "hi", ReplyToID: "m0"}).
		Return(sent, nil).Once()

	f.router.Handle(context.Background(), s, frame(t, shared.EventSendMessage, "a1",
		map[string]string{"senderId": "A", "receiverId": "B", "text": "hi", "replyTo": "m0"}))

	acks := conn.eventsOf(t, shared.EventAck)
	require.Len(t, acks, 1)
	var got models.Message
	require.NoError(t, json.Unmarshal(acks[0].Data, &got))
	assert.Equal(t, "m1", got.ID)

	// a forged sender never reaches the service
	f.router.Handle(context.Background(), s, frame(t, shared.EventSendMessage, "a2",
		map[string]string{"senderId": "B", "receiverId": "A", "text": "spoof"}))
	p, _ := lastError(t, conn)
	assert.Equal(t, codePermissionDenied, p.Code)

	f.messages.AssertExpectations(t)
}

func TestRouter_ValidationErrors(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})
	ctx := context.Background()

	tests := []struct {
		name  string
		frame []byte
	}{
		{"not json", []byte("{nope")},
		{"missing type", []byte(`{"data":{}}`)},
		{"unknown event", frame(t, "launchRockets", "", nil)},
		{"missing receiver", frame(t, shared.EventSendMessage, "", map[string]string{"senderId": "A"})},
		{"bad image url", frame(t, shared.EventSendMessage, "", map[string]string{"senderId": "A", "receiverId": "B", "image": "not a url"})},
		{"empty id", frame(t, shared.EventCheckOnlineStatus, "", " ")},
		{"missing emoji", frame(t, shared.EventToggleReaction, "", map[string]string{"messageId": "m1", "userId": "A"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn.reset()
			f.router.Handle(ctx, s, tt.frame)
			p, _ := lastError(t, conn)
			assert.Equal(t, codeInvalidRequest, p.Code)
		})
	}
	f.messages.AssertNotCalled(t, "Send", mock.Anything)
}

func TestRouter_MarkSeenViewerIsSession(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})
	f.messages.On("MarkSeen", "B", "A").Return(int64(3), nil).Once()

	f.router.Handle(context.Background(), s, frame(t, shared.EventMarkMessagesSeen, "s1",
		map[string]string{"senderId": "B", "receiverId": "A"}))

	acks := conn.eventsOf(t, shared.EventAck)
	require.Len(t, acks, 1)
	assert.JSONEq(t, `{"updated":3}`, string(acks[0].Data))

	f.router.Handle(context.Background(), s, frame(t, shared.EventMarkMessagesSeen, "s2",
		map[string]string{"senderId": "A", "receiverId": "B"}))
	p, _ := lastError(t, conn)
	assert.Equal(t, codePermissionDenied, p.Code)

	f.messages.AssertExpectations(t)
}

func TestRouter_ServiceErrorsAreClassified(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "B"})
	ctx := context.Background()

	f.messages.On("DeleteForEveryone", "m1", "B").Return(service.ErrPermissionDenied)
	f.messages.On("TogglePin", "m404", "B").Return(nil, service.ErrMessageNotFound)
	f.messages.On("Edit", "m2", "B", "x").Return(nil, errors.New("pq: connection reset"))

	f.router.Handle(ctx, s, frame(t, shared.EventDeleteMessage, "d", map[string]string{"messageId": "m1"}))
	p, ack := lastError(t, conn)
	assert.Equal(t, codePermissionDenied, p.Code)
	assert.Equal(t, "d", ack)

	f.router.Handle(ctx, s, frame(t, shared.EventTogglePin, "", map[string]string{"messageId": "m404"}))
	p, _ = lastError(t, conn)
	assert.Equal(t, codeNotFound, p.Code)

	f.router.Handle(ctx, s, frame(t, shared.EventEditMessage, "", map[string]string{"messageId": "m2", "newText": "x"}))
	p, _ = lastError(t, conn)
	assert.Equal(t, codeInternal, p.Code)
	assert.Equal(t, "internal error", p.Message, "storage details stay server-side")
}

func TestRouter_CheckOnlineStatus(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	f.registry.AddConnection("B", newFakeConn("hb"))
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})

	f.router.Handle(context.Background(), s, frame(t, shared.EventCheckOnlineStatus, "q1", "B"))
	f.router.Handle(context.Background(), s, frame(t, shared.EventCheckOnlineStatus, "q2", "C"))

	acks := conn.eventsOf(t, shared.EventAck)
	require.Len(t, acks, 2)
	assert.JSONEq(t, `true`, string(acks[0].Data))
	assert.JSONEq(t, `false`, string(acks[1].Data))
}

func TestRouter_TypingRelaysToReceiverOnly(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	receiver := newFakeConn("hb")
	f.registry.AddConnection("B", receiver)
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})

	f.router.Handle(context.Background(), s, frame(t, shared.EventTyping, "", map[string]string{"senderId": "A", "receiverId": "B"}))
	f.router.Handle(context.Background(), s, frame(t, shared.EventStopTyping, "", map[string]string{"senderId": "A", "receiverId": "B"}))

	assert.Len(t, receiver.eventsOf(t, shared.EventTyping), 1)
	assert.Len(t, receiver.eventsOf(t, shared.EventStopTyping), 1)
	assert.Empty(t, conn.envelopes(t))
}

func TestRouter_RateLimit(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{RateLimit: 0.001, RateBurst: 2})
	conn := newFakeConn("h1")
	s := f.router.Open(conn, &shared.AuthClaims{UserID: "A"})
	ping := frame(t, shared.EventCheckOnlineStatus, "", "B")

	for i := 0; i < 3; i++ {
		f.router.Handle(context.Background(), s, ping)
	}

	p, _ := lastError(t, conn)
	assert.Equal(t, codeRateLimited, p.Code)
	assert.Len(t, conn.eventsOf(t, shared.EventError), 1)
}

func TestRouter_CloseAnnouncesOffline(t *testing.T) {
	f := newRouterFixture(t, RouterOptions{})
	f.notifications.On("UnreadCount", mock.Anything).Return(int64(0), nil)
	watcher := newFakeConn("w")
	f.registry.AddConnection("W", watcher)

	tab1, tab2 := newFakeConn("h1"), newFakeConn("h2")
	s1 := f.router.Open(tab1, &shared.AuthClaims{UserID: "A"})
	s2 := f.router.Open(tab2, &shared.AuthClaims{UserID: "A"})
	f.router.Handle(context.Background(), s1, frame(t, shared.EventAddUser, "", "A"))
	f.router.Handle(context.Background(), s2, frame(t, shared.EventAddUser, "", "A"))
	assert.Len(t, watcher.eventsOf(t, shared.EventUserOnline), 1)

	f.router.Close(s1)
	assert.Empty(t, watcher.eventsOf(t, shared.EventUserOffline))

	f.router.Close(s2)
	assert.Len(t, watcher.eventsOf(t, shared.EventUserOffline), 1)
	assert.False(t, f.registry.IsOnline("A"))

	// closing an unregistered session is harmless
	f.router.Close(f.router.Open(newFakeConn("h3"), &shared.AuthClaims{UserID: "C"}))
}
