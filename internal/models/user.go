package models

// Profile is the public user profile stored in PostgreSQL.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// Presence is a user's self-reported realtime state, stored in Redis with a
// TTL. It is a hint, not a guarantee: a user may go offline microseconds
// after a read and still be counted as online for that invocation.
type Presence struct {
	Online               bool   `json:"online"`
	ActiveConversationID string `json:"active_conversation_id,omitempty"`
}
