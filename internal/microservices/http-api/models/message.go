package models

import (
	"time"

	"gorm.io/datatypes"
)

// Reaction is one user's emoji on a message. (UserID, Emoji) is unique per message.
type Reaction struct {
	UserID string `json:"user_id" bson:"user"`
	Emoji  string `json:"emoji" bson:"emoji"`
}

type Message struct {
	ID         string                        `gorm:"primaryKey;type:uuid" json:"id" bson:"_id"`
	SenderID   string                        `gorm:"type:uuid;not null;index:idx_messages_pair" json:"sender_id" bson:"sender"`
	ReceiverID string                        `gorm:"type:uuid;not null;index:idx_messages_pair" json:"receiver_id" bson:"receiver"`
	Text       string                        `gorm:"not null;default:''" json:"text" bson:"text"`
	Image      string                        `gorm:"not null;default:''" json:"image,omitempty" bson:"image,omitempty"`
	ReplyToID  *string                       `gorm:"type:uuid" json:"reply_to_id,omitempty" bson:"reply_to,omitempty"`
	Seen       bool                          `gorm:"not null;default:false" json:"seen" bson:"seen"`
	IsEdited   bool                          `gorm:"not null;default:false" json:"is_edited" bson:"is_edited"`
	Pinned     bool                          `gorm:"not null;default:false" json:"pinned" bson:"pinned"`
	Reactions  datatypes.JSONSlice[Reaction] `gorm:"type:jsonb;not null" json:"reactions" bson:"reactions"`
	DeletedFor []string                      `gorm:"-" json:"-" bson:"deleted_for,omitempty"`
	CreatedAt  time.Time                     `json:"created_at" bson:"created_at"`

	// Populated for delivery, never stored
	ReplyTo *Message `gorm:"-" json:"reply_to,omitempty" bson:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// HasParticipant reports whether userID is the sender or the receiver.
func (m *Message) HasParticipant(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// SameConversation reports whether both messages belong to the same unordered pair.
func (m *Message) SameConversation(other *Message) bool {
	if m.SenderID == other.SenderID && m.ReceiverID == other.ReceiverID {
		return true
	}
	return m.SenderID == other.ReceiverID && m.ReceiverID == other.SenderID
}

// ToggleReaction removes the (userID, emoji) pair if present, otherwise appends it.
// It returns true when the reaction was added.
func (m *Message) ToggleReaction(userID, emoji string) bool {
	for i, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			m.Reactions = append(m.Reactions[:i:i], m.Reactions[i+1:]...)
			return false
		}
	}
	m.Reactions = append(m.Reactions, Reaction{UserID: userID, Emoji: emoji})
	return true
}

// MessageDeletion hides a message from one participant's history.
type MessageDeletion struct {
	MessageID string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

func (MessageDeletion) TableName() string {
	return "message_deletions"
}
