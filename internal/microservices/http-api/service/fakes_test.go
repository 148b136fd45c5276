package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"cinecircle/internal/microservices/http-api/models"
	"cinecircle/internal/microservices/http-api/repository"
	"cinecircle/internal/shared"

	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// delivery is one call into the recording deliverer.
type delivery struct {
	UserID  string
	Event   shared.EventType
	Payload any
}

type recordingDeliverer struct {
	mu         sync.Mutex
	online     map[string]bool
	deliveries []delivery
}

func newRecordingDeliverer(online ...string) *recordingDeliverer {
	d := &recordingDeliverer{online: map[string]bool{}}
	for _, id := range online {
		d.online[id] = true
	}
	return d
}

func (d *recordingDeliverer) Deliver(userID string, event shared.EventType, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery{UserID: userID, Event: event, Payload: payload})
	return d.online[userID]
}

func (d *recordingDeliverer) to(userID string) []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []delivery
	for _, dl := range d.deliveries {
		if dl.UserID == userID {
			out = append(out, dl)
		}
	}
	return out
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deliveries)
}

// fakeMessageRepo is an in-memory MessageRepository that stores copies, so
// services cannot mutate persisted state without calling Update.
type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[string]models.Message
	hidden    map[string]map[string]bool
	createErr error
	updateErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages: map[string]models.Message{},
		hidden:   map[string]map[string]bool{},
	}
}

func cloneMessage(m models.Message) models.Message {
	m.Reactions = slices.Clone(m.Reactions)
	m.ReplyTo = nil
	return m
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ID] = cloneMessage(*msg)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	c := cloneMessage(m)
	return &c, nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, msg *models.Message) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.messages[msg.ID]
	if !ok {
		return repository.ErrRecordNotFound
	}
	stored.Text = msg.Text
	stored.IsEdited = msg.IsEdited
	stored.Pinned = msg.Pinned
	stored.Reactions = slices.Clone(msg.Reactions)
	r.messages[msg.ID] = stored
	return nil
}

func (r *fakeMessageRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return repository.ErrRecordNotFound
	}
	delete(r.messages, id)
	delete(r.hidden, id)
	return nil
}

func (r *fakeMessageRepo) MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Seen {
			m.Seen = true
			r.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) HideForUser(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return repository.ErrRecordNotFound
	}
	if r.hidden[id] == nil {
		r.hidden[id] = map[string]bool{}
	}
	r.hidden[id][userID] = true
	return nil
}

func (r *fakeMessageRepo) ListConversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for id, m := range r.messages {
		inPair := (m.SenderID == userID && m.ReceiverID == partnerID) ||
			(m.SenderID == partnerID && m.ReceiverID == userID)
		if !inPair || r.hidden[id][userID] {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []models.Notification
	failFor       map[string]error // recipient ID -> Create error
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[n.RecipientID]; err != nil {
		return err
	}
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			c := n
			return &c, nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (r *fakeNotificationRepo) ListByRecipient(ctx context.Context, userID string, offset, limit int) ([]models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []models.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].RecipientID == userID {
			mine = append(mine, r.notifications[i])
		}
	}
	total := int64(len(mine))
	if offset >= len(mine) {
		return []models.Notification{}, total, nil
	}
	end := min(offset+limit, len(mine))
	return mine[offset:end], total, nil
}

func (r *fakeNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, x := range r.notifications {
		if x.RecipientID == userID && !x.Read {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) MarkAsRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications[i].Read = true
			return nil
		}
	}
	return repository.ErrRecordNotFound
}

func (r *fakeNotificationRepo) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.notifications {
		if r.notifications[i].RecipientID == userID && !r.notifications[i].Read {
			r.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) forRecipient(userID string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeUserRepo struct {
	users   map[string]models.User
	friends map[string][]string
	err     error
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.User
	for _, id := range r.friends[userID] {
		out = append(out, r.users[id])
	}
	return out, nil
}

// MockNotificationRepository mocks the NotificationRepository interface
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, userID string, offset, limit int) ([]models.Notification, int64, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) MarkAsRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
