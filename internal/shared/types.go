package shared

import (
	"encoding/json"
	"fmt"
)

// shared types across the application
// 1st: auth claims carried by HTTP requests and real-time sessions
// 2nd: the real-time envelope and the event names it carries
// 3rd: payloads pushed to clients

type AuthClaims struct {
	UserID   string `json:"user_id"`  // user identifier(UUID)
	UserName string `json:"username"` // display name
}

// EventType names a frame on a real-time connection.
type EventType string

// Client -> server commands
const (
	EventAuth              EventType = "auth" // TCP handshake only
	EventAddUser           EventType = "addUser"
	EventSendMessage       EventType = "sendMessage"
	EventTyping            EventType = "typing"
	EventStopTyping        EventType = "stopTyping"
	EventCheckOnlineStatus EventType = "checkOnlineStatus"
	EventMarkMessagesSeen  EventType = "markMessagesSeen"
	EventEditMessage       EventType = "editMessage"
	EventToggleReaction    EventType = "toggleReaction"
	EventTogglePin         EventType = "togglePin"
	EventDeleteMessage     EventType = "deleteMessage"
	EventDeleteMessageMe   EventType = "deleteMessageForMe"
)

// Server -> client events
const (
	EventReceiveMessage         EventType = "receiveMessage"
	EventMessagesSeen           EventType = "messagesSeen"
	EventMessageUpdated         EventType = "messageUpdated"
	EventMessageReactionUpdated EventType = "messageReactionUpdated"
	EventMessagePinned          EventType = "messagePinned"
	EventMessageDeleted         EventType = "messageDeleted"
	EventUserOnline             EventType = "userOnline"
	EventUserOffline            EventType = "userOffline"
	EventNotificationNew        EventType = "notification:new"
	EventNotificationUnread     EventType = "notification:unread-count"
	EventAck                    EventType = "ack"
	EventError                  EventType = "error"
)

// Envelope is the frame exchanged on every real-time transport.
// Ack, when set by the client, is echoed on the reply.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Ack  string          `json:"ack,omitempty"`
}

// EncodeEnvelope serializes an outbound frame.
func EncodeEnvelope(event EventType, data any) ([]byte, error) {
	return encode(event, "", data)
}

// EncodeAck serializes the reply to a command that carried an ack id.
func EncodeAck(ack string, data any) ([]byte, error) {
	return encode(EventAck, ack, data)
}

// EncodeError serializes an error reply. ack may be empty.
func EncodeError(ack string, payload ErrorPayload) ([]byte, error) {
	return encode(EventError, ack, payload)
}

func encode(event EventType, ack string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Type: event, Data: raw, Ack: ack})
}

// DecodeEnvelope parses an inbound frame.
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("invalid frame: missing type")
	}
	return &env, nil
}

// NotificationPush accompanies every newly created notification.
type NotificationPush struct {
	Notification any   `json:"notification"`
	UnreadCount  int64 `json:"unreadCount"`
}

// UnreadCountSync carries the authoritative unread count after a read.
type UnreadCountSync struct {
	UnreadCount int64 `json:"unreadCount"`
}

// SeenSync tells a sender that the viewer has seen their messages.
type SeenSync struct {
	SenderID string `json:"senderId"`
}

// TypingSignal identifies who is (or stopped) typing.
type TypingSignal struct {
	SenderID string `json:"senderId"`
}

// Tombstone marks a message deleted for everyone.
type Tombstone struct {
	MessageID string `json:"messageId"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
