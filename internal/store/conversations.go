package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/protocol-chat/notify-backend/internal/models"
)

// ConversationStore reads conversation and message documents from MongoDB.
// Both collections are owned by the chat-write path; this engine never
// writes to them.
type ConversationStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationStore(db *mongo.Database) *ConversationStore {
	return &ConversationStore{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

// Get returns the raw conversation document, membership fields untyped.
// A missing conversation returns (nil, nil); the caller decides how to
// report that.
func (s *ConversationStore) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetMessage loads one message by conversation and message id. Returns
// (nil, nil) when the message does not exist.
func (s *ConversationStore) GetMessage(ctx context.Context, conversationID, messageID string) (*models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, nil
	}

	var msg models.Message
	err = s.messages.FindOne(ctx, bson.M{"_id": oid, "conversation_id": conversationID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}
