package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	comms_entities "github.com/coldkeep/custody-api/pkg/domain/comms/entities"
	comms_out "github.com/coldkeep/custody-api/pkg/domain/comms/ports/out"
)

var _ comms_out.Repository = (*CommsRepository)(nil)

// CommsRepository is the Mongo-backed comms_out.Repository, wrapping
// VersionedRepository for CAS writes and adding the rate-limit/lookup
// queries spec.md §4.4 needs.
type CommsRepository struct {
	*VersionedRepository[comms_entities.VerificationCode]
	collection *mongo.Collection
}

func NewCommsRepository(db *mongo.Database) *CommsRepository {
	return &CommsRepository{
		VersionedRepository: NewVersionedRepository[comms_entities.VerificationCode](db, "verification_codes"),
		collection:           db.Collection("verification_codes"),
	}
}

// FindLatest returns the most recently created code for (accountID,
// scopeKey).
func (r *CommsRepository) FindLatest(ctx context.Context, accountID uuid.UUID, scopeKey string) (comms_entities.VerificationCode, bool, error) {
	filter := bson.M{"account_id": accountID, "scope_key": scopeKey}
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})

	var code comms_entities.VerificationCode
	err := r.collection.FindOne(ctx, filter, opts).Decode(&code)
	if err == mongo.ErrNoDocuments {
		return comms_entities.VerificationCode{}, false, nil
	}
	if err != nil {
		return comms_entities.VerificationCode{}, false, fmt.Errorf("comms repository: find latest: %w", err)
	}

	return code, true, nil
}

// CountSince counts initiations for (accountID, scopeKey) created at or
// after since.
func (r *CommsRepository) CountSince(ctx context.Context, accountID uuid.UUID, scopeKey string, since time.Time) (int, error) {
	filter := bson.M{
		"account_id": accountID,
		"scope_key":  scopeKey,
		"created_at": bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("comms repository: count since: %w", err)
	}

	return int(count), nil
}
