package models

import "time"

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationMention NotificationType = "mention"
)

type Notification struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string           `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    string           `gorm:"type:uuid;not null" json:"sender_id"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"` // like, comment, mention
	ReviewID    string           `gorm:"not null" json:"review_id"`
	MovieTitle  string           `gorm:"not null;default:''" json:"movie_title"`
	Read        bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Associations
	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
