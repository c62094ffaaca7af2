package managers

import (
	"context"
	"errors"
	"time"

	"github.com/taskline/taskline/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const servicesCollection = "services"

// mongoCredentialStore maps the (user, service) key space onto one document
// per user in the services collection, with one token field per service
// (token_mail, token_calendar). It never inspects envelope contents and never
// decides create-vs-update on its own.
type mongoCredentialStore struct {
	collection *mongo.Collection
}

func NewMongoCredentialStore(db *mongo.Database) domain.CredentialStore {
	return &mongoCredentialStore{
		collection: db.Collection(servicesCollection),
	}
}

func tokenField(serviceID domain.ServiceID) string {
	return "token_" + string(serviceID)
}

func (s *mongoCredentialStore) Get(ctx context.Context, userID string, serviceID domain.ServiceID) (domain.CredentialRecord, error) {
	var doc bson.M

	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.CredentialRecord{}, domain.ErrCredentialNotFound
		}

		return domain.CredentialRecord{}, &domain.StoreUnavailableError{Op: "get", Err: err}
	}

	envelope, ok := doc[tokenField(serviceID)].(string)
	if !ok || envelope == "" {
		return domain.CredentialRecord{}, domain.ErrCredentialNotFound
	}

	record := domain.CredentialRecord{
		UserID:          userID,
		ServiceID:       serviceID,
		EncryptedBundle: envelope,
	}

	if updatedAt, ok := doc["updated_at"].(primitive.DateTime); ok {
		record.UpdatedAt = updatedAt.Time()
	}

	return record, nil
}

func (s *mongoCredentialStore) Set(ctx context.Context, userID string, serviceID domain.ServiceID, encryptedBundle string) error {
	update := bson.M{
		"$set": bson.M{
			"user_id":             userID,
			tokenField(serviceID): encryptedBundle,
			"updated_at":          time.Now(),
		},
	}

	_, err := s.collection.UpdateByID(ctx, userID, update, options.Update().SetUpsert(true))
	if err != nil {
		return &domain.StoreUnavailableError{Op: "set", Err: err}
	}

	return nil
}

func (s *mongoCredentialStore) Update(ctx context.Context, userID string, serviceID domain.ServiceID, encryptedBundle string) error {
	update := bson.M{
		"$set": bson.M{
			tokenField(serviceID): encryptedBundle,
			"updated_at":          time.Now(),
		},
	}

	result, err := s.collection.UpdateByID(ctx, userID, update)
	if err != nil {
		return &domain.StoreUnavailableError{Op: "update", Err: err}
	}

	if result.MatchedCount == 0 {
		return domain.ErrCredentialNotFound
	}

	return nil
}
