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
	"gorm.io/datatypes"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type SendMessageInput struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	ReplyToID  string
}

// MessageService owns the lifecycle of direct messages. Every mutation is
// persisted before anything is pushed to the participants.
type MessageService interface {
	Send(ctx context.Context, in SendMessageInput) (*models.Message, error)
	// MarkSeen marks every unseen message partnerID sent to viewerID.
	MarkSeen(ctx context.Context, partnerID, viewerID string) (int64, error)
	Edit(ctx context.Context, messageID, actorID, newText string) (*models.Message, error)
	ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*models.Message, error)
	TogglePin(ctx context.Context, messageID, actorID string) (*models.Message, error)
	DeleteForMe(ctx context.Context, messageID, userID string) error
	DeleteForEveryone(ctx context.Context, messageID, requesterID string) error
	Conversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error)
}

type messageService struct {
	repo      repository.MessageRepository
	deliverer Deliverer
	logger    *slog.Logger
}

func NewMessageService(repo repository.MessageRepository, deliverer Deliverer, logger *slog.Logger) MessageService {
	return &messageService{
		repo:      repo,
		deliverer: deliverer,
		logger:    logger,
	}
}

func (s *messageService) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	senderID := strings.TrimSpace(in.SenderID)
	receiverID := strings.TrimSpace(in.ReceiverID)
	if senderID == "" || receiverID == "" {
		return nil, ErrMissingParticipant
	}
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.Image) == "" {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       in.Text,
		Image:      in.Image,
		Reactions:  datatypes.JSONSlice[models.Reaction]{},
		CreatedAt:  time.Now().UTC(),
	}

	if replyID := strings.TrimSpace(in.ReplyToID); replyID != "" {
		parent, err := s.repo.GetByID(ctx, replyID)
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrInvalidReply
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load reply target: %w", err)
		}
		if !parent.SameConversation(msg) {
			return nil, ErrInvalidReply
		}
		msg.ReplyToID = &parent.ID
		msg.ReplyTo = parent
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	s.logger.Info("message_sent", "message_id", msg.ID, "sender_id", senderID, "receiver_id", receiverID)
	s.deliverToParticipants(msg, shared.EventReceiveMessage, msg)
	return msg, nil
}

func (s *messageService) MarkSeen(ctx context.Context, partnerID, viewerID string) (int64, error) {
	partnerID = strings.TrimSpace(partnerID)
	viewerID = strings.TrimSpace(viewerID)
	if partnerID == "" || viewerID == "" {
		return 0, ErrMissingParticipant
	}
	// a user never "sees" their own messages
	if partnerID == viewerID {
		return 0, nil
	}

	changed, err := s.repo.MarkSeen(ctx, partnerID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages seen: %w", err)
	}
	if changed > 0 {
		s.deliverer.Deliver(partnerID, shared.EventMessagesSeen, shared.SeenSync{SenderID: viewerID})
	}
	return changed, nil
}

func (s *messageService) Edit(ctx context.Context, messageID, actorID, newText string) (*models.Message, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actorID {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(newText) == "" && msg.Image == "" {
		return nil, ErrEmptyMessage
	}

	msg.Text = newText
	msg.IsEdited = true
	if err := s.save(ctx, msg); err != nil {
		return nil, err
	}

	s.deliverToParticipants(msg, shared.EventMessageUpdated, msg)
	return msg, nil
}

func (s *messageService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*models.Message, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, ErrEmptyReaction
	}
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.HasParticipant(userID) {
		return nil, ErrPermissionDenied
	}

	added := msg.ToggleReaction(userID, emoji)
	if err := s.save(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Debug("reaction_toggled", "message_id", msg.ID, "user_id", userID, "emoji", emoji, "added", added)
	s.deliverToParticipants(msg, shared.EventMessageReactionUpdated, msg)
	return msg, nil
}

func (s *messageService) TogglePin(ctx context.Context, messageID, actorID string) (*models.Message, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.HasParticipant(actorID) {
		return nil, ErrPermissionDenied
	}

	msg.Pinned = !msg.Pinned
	if err := s.save(ctx, msg); err != nil {
		return nil, err
	}

	if msg.ReplyToID != nil {
		// the reply preview is cosmetic; a vanished parent is not an error
		if parent, err := s.repo.GetByID(ctx, *msg.ReplyToID); err == nil {
			msg.ReplyTo = parent
		}
	}

	s.deliverToParticipants(msg, shared.EventMessagePinned, msg)
	return msg, nil
}

func (s *messageService) DeleteForMe(ctx context.Context, messageID, userID string) error {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return err
	}
	if !msg.HasParticipant(userID) {
		return ErrPermissionDenied
	}
	if err := s.repo.HideForUser(ctx, msg.ID, userID); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to hide message: %w", err)
	}
	return nil
}

func (s *messageService) DeleteForEveryone(ctx context.Context, messageID, requesterID string) error {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return ErrPermissionDenied
	}
	if err := s.repo.Delete(ctx, msg.ID); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}

	s.logger.Info("message_deleted", "message_id", msg.ID, "sender_id", msg.SenderID)
	s.deliverToParticipants(msg, shared.EventMessageDeleted, shared.Tombstone{MessageID: msg.ID})
	return nil
}

func (s *messageService) Conversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(partnerID) == "" {
		return nil, ErrMissingParticipant
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.ListConversation(ctx, userID, partnerID, limit)
}

func (s *messageService) load(ctx context.Context, messageID string) (*models.Message, error) {
	msg, err := s.repo.GetByID(ctx, strings.TrimSpace(messageID))
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}

func (s *messageService) save(ctx context.Context, msg *models.Message) error {
	if err := s.repo.Update(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// deliverToParticipants pushes to the receiver and echoes to the sender's
// other tabs. A self-conversation is delivered once.
func (s *messageService) deliverToParticipants(msg *models.Message, event shared.EventType, payload any) {
	s.deliverer.Deliver(msg.ReceiverID, event, payload)
	if msg.SenderID != msg.ReceiverID {
		s.deliverer.Deliver(msg.SenderID, event, payload)
	}
}
