package managers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/taskline/taskline/internal/domain"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageHistoryCollection = "message_history"

const maxTitleLength = 50

// mongoConversationStore persists chat history, one document per
// conversation.
type mongoConversationStore struct {
	collection *mongo.Collection
}

func NewMongoConversationStore(db *mongo.Database) domain.ConversationStore {
	store := &mongoConversationStore{
		collection: db.Collection(messageHistoryCollection),
	}

	store.ensureIndexes()

	return store
}

func (s *mongoConversationStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "updated_at", Value: -1},
			},
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for message_history")
	}
}

func (s *mongoConversationStore) GetConversation(ctx context.Context, userID, conversationID string) (domain.Conversation, error) {
	var conversation domain.Conversation

	err := s.collection.FindOne(ctx, bson.M{"_id": conversationID, "user_id": userID}).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Conversation{}, domain.ErrConversationNotFound
		}

		return domain.Conversation{}, &domain.StoreUnavailableError{Op: "get", Err: err}
	}

	return conversation, nil
}

func (s *mongoConversationStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetProjection(bson.M{"messages": 0})

	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list", Err: err}
	}
	defer cursor.Close(ctx)

	var conversations []domain.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list", Err: err}
	}

	return conversations, nil
}

func (s *mongoConversationStore) AppendMessages(ctx context.Context, userID, conversationID string, messages ...domain.Message) (domain.Conversation, error) {
	if len(messages) == 0 {
		return s.GetConversation(ctx, userID, conversationID)
	}

	now := time.Now()

	update := bson.M{
		"$push": bson.M{
			"messages": bson.M{"$each": messages},
		},
		"$set": bson.M{
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"title":      DeriveConversationTitle(firstUserContent(messages)),
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conversation domain.Conversation

	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": conversationID, "user_id": userID}, update, opts).Decode(&conversation)
	if err != nil {
		return domain.Conversation{}, &domain.StoreUnavailableError{Op: "append", Err: err}
	}

	return conversation, nil
}

func firstUserContent(messages []domain.Message) string {
	for _, message := range messages {
		if message.Role == domain.MessageRoleUser {
			return message.Content
		}
	}

	return ""
}

// DeriveConversationTitle builds a conversation title from the first user
// message: whitespace collapsed, truncated with an ellipsis past the limit.
func DeriveConversationTitle(prompt string) string {
	title := strings.Join(strings.Fields(prompt), " ")

	if runes := []rune(title); len(runes) > maxTitleLength {
		title = strings.TrimSpace(string(runes[:maxTitleLength])) + "..."
	}

	if title == "" {
		title = "New Chat"
	}

	return title
}
