package domain

import (
	"context"
	"errors"
	"time"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type Message struct {
	ID        string      `bson:"id" json:"id"`
	Role      MessageRole `bson:"role" json:"role"`
	Content   string      `bson:"content" json:"content"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

type Conversation struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Title     string    `bson:"title" json:"title"`
	Messages  []Message `bson:"messages" json:"messages"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ConversationStore persists chat history per user.
type ConversationStore interface {
	GetConversation(ctx context.Context, userID, conversationID string) (Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	AppendMessages(ctx context.Context, userID, conversationID string, messages ...Message) (Conversation, error)
}

// ErrConversationNotFound is returned when no conversation exists for the id.
var ErrConversationNotFound = errors.New("conversation not found")
