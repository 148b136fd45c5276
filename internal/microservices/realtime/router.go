package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cinecircle/internal/microservices/http-api/service"
	"cinecircle/internal/shared"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

type RouterOptions struct {
	RateLimit float64 // frames per second per connection
	RateBurst int
}

// Router decodes inbound frames and dispatches them to the message and
// notification services. Identity always comes from the authenticated
// session; ids in payloads must agree with it.
type Router struct {
	presence      *Presence
	dispatcher    *Dispatcher
	messages      service.MessageService
	notifications service.NotificationService
	validate      *validator.Validate
	opts          RouterOptions
	logger        *slog.Logger
}

func NewRouter(
	presence *Presence,
	dispatcher *Dispatcher,
	messages service.MessageService,
	notifications service.NotificationService,
	opts RouterOptions,
	logger *slog.Logger,
) *Router {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	return &Router{
		presence:      presence,
		dispatcher:    dispatcher,
		messages:      messages,
		notifications: notifications,
		validate:      validator.New(),
		opts:          opts,
		logger:        logger,
	}
}

// Open starts a session for an authenticated connection. The connection is
// not registered for delivery until the client sends addUser.
func (r *Router) Open(conn Conn, claims *shared.AuthClaims) *Session {
	s := &Session{
		conn:    conn,
		claims:  *claims,
		limiter: rate.NewLimiter(rate.Limit(r.opts.RateLimit), r.opts.RateBurst),
	}
	s.claims.UserID = normalizeID(s.claims.UserID)
	r.logger.Info("session_opened", "connection_id", conn.ID(), "user_id", s.UserID())
	return s
}

// Close unregisters the session's connection, announcing the user offline
// when it was their last one.
func (r *Router) Close(s *Session) {
	removal := r.presence.Disconnect(s.conn.ID())
	r.logger.Info("session_closed",
		"connection_id", s.conn.ID(),
		"user_id", s.UserID(),
		"became_offline", removal.BecameOffline,
	)
}

// Handle processes one inbound frame. Failures are reported to the sending
// connection as an error event and never tear the session down.
func (r *Router) Handle(ctx context.Context, s *Session, frame []byte) {
	if !s.limiter.Allow() {
		r.logger.Warn("rate_limit_exceeded", "connection_id", s.conn.ID(), "user_id", s.UserID())
		r.replyError(s, "", ErrRateLimited)
		return
	}

	env, err := shared.DecodeEnvelope(frame)
	if err != nil {
		r.replyError(s, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		return
	}

	result, err := r.route(ctx, s, env)
	if err != nil {
		r.replyError(s, env.Ack, err)
		return
	}
	if env.Ack == "" {
		return
	}
	reply, err := shared.EncodeAck(env.Ack, result)
	if err != nil {
		r.logger.Error("ack_encode_failed", "event", env.Type, "error", err)
		return
	}
	r.dispatcher.Reply(s.conn, reply)
}

func (r *Router) route(ctx context.Context, s *Session, env *shared.Envelope) (any, error) {
	switch env.Type {
	case shared.EventAddUser:
		return r.addUser(ctx, s, env.Data)
	case shared.EventSendMessage:
		return r.sendMessage(ctx, s, env.Data)
	case shared.EventTyping:
		return r.typing(s, env.Data, true)
	case shared.EventStopTyping:
		return r.typing(s, env.Data, false)
	case shared.EventCheckOnlineStatus:
		userID, err := decodeID(env.Data)
		if err != nil {
			return nil, err
		}
		return r.presence.IsOnline(userID), nil
	case shared.EventMarkMessagesSeen:
		return r.markSeen(ctx, s, env.Data)
	case shared.EventEditMessage:
		var p editMessagePayload
		if err := r.decode(env.Data, &p); err != nil {
			return nil, err
		}
		return r.messages.Edit(ctx, p.MessageID, s.UserID(), p.NewText)
	case shared.EventToggleReaction:
		var p reactionPayload
		if err := r.decode(env.Data, &p); err != nil {
			return nil, err
		}
		if err := s.requireSelf(p.UserID); err != nil {
			return nil, err
		}
		return r.messages.ToggleReaction(ctx, p.MessageID, s.UserID(), p.Emoji)
	case shared.EventTogglePin:
		var p messageRefPayload
		if err := r.decode(env.Data, &p); err != nil {
			return nil, err
		}
		return r.messages.TogglePin(ctx, p.MessageID, s.UserID())
	case shared.EventDeleteMessage:
		var p messageRefPayload
		if err := r.decode(env.Data, &p); err != nil {
			return nil, err
		}
		return shared.Tombstone{MessageID: p.MessageID}, r.messages.DeleteForEveryone(ctx, p.MessageID, s.UserID())
	case shared.EventDeleteMessageMe:
		var p messageRefPayload
		if err := r.decode(env.Data, &p); err != nil {
			return nil, err
		}
		return shared.Tombstone{MessageID: p.MessageID}, r.messages.DeleteForMe(ctx, p.MessageID, s.UserID())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func (r *Router) addUser(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	userID, err := decodeID(data)
	if err != nil {
		return nil, err
	}
	if err := s.requireSelf(userID); err != nil {
		return nil, err
	}

	r.presence.Connect(s.UserID(), s.conn)
	s.registered = true

	// a fresh tab starts from the authoritative unread count
	count, err := r.notifications.UnreadCount(ctx, s.UserID())
	if err != nil {
		r.logger.Warn("unread_count_sync_failed", "user_id", s.UserID(), "error", err)
		return true, nil
	}
	frame, err := shared.EncodeEnvelope(shared.EventNotificationUnread, shared.UnreadCountSync{UnreadCount: count})
	if err == nil {
		r.dispatcher.Reply(s.conn, frame)
	}
	return true, nil
}

func (r *Router) sendMessage(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var p sendMessagePayload
	if err := r.decode(data, &p); err != nil {
		return nil, err
	}
	if err := s.requireSelf(p.SenderID); err != nil {
		return nil, err
	}
	return r.messages.Send(ctx, service.SendMessageInput{
		SenderID:   s.UserID(),
		ReceiverID: p.ReceiverID,
		Text:       p.Text,
		Image:      p.Image,
		ReplyToID:  p.ReplyTo,
	})
}

func (r *Router) typing(s *Session, data json.RawMessage, typing bool) (any, error) {
	var p conversationPayload
	if err := r.decode(data, &p); err != nil {
		return nil, err
	}
	if err := s.requireSelf(p.SenderID); err != nil {
		return nil, err
	}
	return r.presence.Typing(s.UserID(), normalizeID(p.ReceiverID), typing), nil
}

// markSeen: the session user is the viewer (receiverId) marking what
// senderId sent them.
func (r *Router) markSeen(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var p conversationPayload
	if err := r.decode(data, &p); err != nil {
		return nil, err
	}
	if err := s.requireSelf(p.ReceiverID); err != nil {
		return nil, err
	}
	n, err := r.messages.MarkSeen(ctx, p.SenderID, s.UserID())
	if err != nil {
		return nil, err
	}
	return seenResult{Updated: n}, nil
}

func (r *Router) decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := r.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// decodeID reads a bare JSON string id.
func decodeID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return "", fmt.Errorf("%w: expected a user id string", ErrInvalidPayload)
	}
	id = normalizeID(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidPayload)
	}
	return id, nil
}

func (s *Session) requireSelf(claimed string) error {
	if normalizeID(claimed) != s.UserID() {
		return ErrIdentityMismatch
	}
	return nil
}

func (r *Router) replyError(s *Session, ack string, err error) {
	payload := classify(err)
	if payload.Code == codeInternal {
		r.logger.Error("command_failed", "connection_id", s.conn.ID(), "user_id", s.UserID(), "error", err)
	} else {
		r.logger.Debug("command_rejected", "connection_id", s.conn.ID(), "code", payload.Code, "error", err)
	}
	frame, encErr := shared.EncodeError(ack, payload)
	if encErr != nil {
		return
	}
	r.dispatcher.Reply(s.conn, frame)
}

const (
	codeNotFound         = "not_found"
	codePermissionDenied = "permission_denied"
	codeInvalidRequest   = "invalid_request"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal"
)

func classify(err error) shared.ErrorPayload {
	switch {
	case errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return shared.ErrorPayload{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, ErrIdentityMismatch):
		return shared.ErrorPayload{Code: codePermissionDenied, Message: err.Error()}
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrMissingParticipant),
		errors.Is(err, service.ErrInvalidReply),
		errors.Is(err, service.ErrEmptyReaction),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrUnknownEvent):
		return shared.ErrorPayload{Code: codeInvalidRequest, Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return shared.ErrorPayload{Code: codeRateLimited, Message: err.Error()}
	default:
		return shared.ErrorPayload{Code: codeInternal, Message: "internal error"}
	}
}
