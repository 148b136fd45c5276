package repository

import (
	"context"
	"errors"
	"slices"

	"cinecircle/internal/microservices/http-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRecordNotFound is returned by every store when the addressed row is gone.
var ErrRecordNotFound = errors.New("record not found")

// MessageRepository persists direct messages. Implementations exist for
// Postgres (gorm) and MongoDB.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// Update writes the mutable fields: text, edit flag, pin flag and reactions.
	Update(ctx context.Context, msg *models.Message) error
	Delete(ctx context.Context, id string) error
	// MarkSeen flips every unseen message sender -> receiver and returns how many changed.
	MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error)
	HideForUser(ctx context.Context, id, userID string) error
	// ListConversation returns the latest messages between two users, oldest first,
	// skipping those userID hid.
	ListConversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// validIDs guards uuid columns: postgres rejects a malformed uuid with a
// syntax error, which callers should see as a missing row instead.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if uuid.Validate(id) != nil {
			return false
		}
	}
	return true
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if !validIDs(id) {
		return nil, ErrRecordNotFound
	}
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) Update(ctx context.Context, msg *models.Message) error {
	if !validIDs(msg.ID) {
		return ErrRecordNotFound
	}
	result := r.db.WithContext(ctx).
		Model(&models.Message{ID: msg.ID}).
		Select("text", "is_edited", "pinned", "reactions").
		Updates(msg)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete removes the row; hide markers go with it through ON DELETE CASCADE.
func (r *messageRepository) Delete(ctx context.Context, id string) error {
	if !validIDs(id) {
		return ErrRecordNotFound
	}
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Message{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *messageRepository) MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	if !validIDs(senderID, receiverID) {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
		Update("seen", true)
	return result.RowsAffected, result.Error
}

func (r *messageRepository) HideForUser(ctx context.Context, id, userID string) error {
	if !validIDs(id, userID) {
		return ErrRecordNotFound
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrRecordNotFound
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.MessageDeletion{MessageID: id, UserID: userID}).Error
	})
}

func (r *messageRepository) ListConversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error) {
	messages := []models.Message{}
	if !validIDs(userID, partnerID) {
		return messages, nil
	}
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, partnerID, partnerID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = messages.id AND d.user_id = ?)", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
