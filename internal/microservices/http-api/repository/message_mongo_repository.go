package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"cinecircle/internal/microservices/http-api/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messagesCollection = "messages"

type mongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository stores messages as documents; hide-for-me is kept
// inline in each document's deleted_for array.
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{collection: db.Collection(messagesCollection)}
}

// EnsureMessageIndexes creates the conversation and unseen lookups.
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "seen", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}

func (r *mongoMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

func (r *mongoMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *mongoMessageRepository) Update(ctx context.Context, msg *models.Message) error {
	update := bson.M{"$set": bson.M{
		"text":      msg.Text,
		"is_edited": msg.IsEdited,
		"pinned":    msg.Pinned,
		"reactions": msg.Reactions,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": msg.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *mongoMessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *mongoMessageRepository) MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"sender": senderID, "receiver": receiverID, "seen": false},
		bson.M{"$set": bson.M{"seen": true}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *mongoMessageRepository) HideForUser(ctx context.Context, id, userID string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"deleted_for": userID}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *mongoMessageRepository) ListConversation(ctx context.Context, userID, partnerID string, limit int) ([]models.Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": userID, "receiver": partnerID},
			bson.M{"sender": partnerID, "receiver": userID},
		},
		"deleted_for": bson.M{"$ne": userID},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
