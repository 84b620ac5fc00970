package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Message is one chat message as stored by the chat-write path.
// This engine only reads messages; it never creates or mutates them.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	SenderID       string             `bson:"sender_id" json:"sender_id"`
	SenderUsername string             `bson:"sender_username,omitempty" json:"sender_username,omitempty"`
	Body           string             `bson:"body" json:"body"`
	CreatedAt      int64              `bson:"created_at" json:"created_at"` // unix millis
}

// Conversation is the raw conversation document. The membership fields are
// deliberately untyped: the conversation store accreted several legacy
// encodings over time (list, map-of-booleans, map-of-objects, plain string)
// and the fan-out resolver is the single place that normalizes them.
type Conversation struct {
	ID           string      `bson:"_id" json:"id"`
	Name         string      `bson:"name,omitempty" json:"name,omitempty"`
	Participants interface{} `bson:"participants,omitempty" json:"participants,omitempty"`
	Members      interface{} `bson:"members,omitempty" json:"members,omitempty"`
	CreatedBy    string      `bson:"created_by,omitempty" json:"created_by,omitempty"`
}
