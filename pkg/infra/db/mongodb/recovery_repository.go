package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	recovery_entities "github.com/coldkeep/custody-api/pkg/domain/recovery/entities"
	recovery_out "github.com/coldkeep/custody-api/pkg/domain/recovery/ports/out"
)

var _ recovery_out.Repository = (*RecoveryRepository)(nil)

// RecoveryRepository is the Mongo-backed recovery_out.Repository, wrapping
// VersionedRepository for CAS writes and adding the account/pubkey lookups
// the Delay-and-Notify lifecycle needs (spec.md §4.6).
type RecoveryRepository struct {
	*VersionedRepository[recovery_entities.Recovery]
	collection *mongo.Collection
}

func NewRecoveryRepository(db *mongo.Database) *RecoveryRepository {
	return &RecoveryRepository{
		VersionedRepository: NewVersionedRepository[recovery_entities.Recovery](db, "recoveries"),
		collection:           db.Collection("recoveries"),
	}
}

func (r *RecoveryRepository) FindPendingByAccount(ctx context.Context, accountID uuid.UUID) (recovery_entities.Recovery, bool, error) {
	filter := bson.M{"account_id": accountID, "status": recovery_entities.StatusPending}

	var rec recovery_entities.Recovery
	err := r.collection.FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return recovery_entities.Recovery{}, false, nil
	}
	if err != nil {
		return recovery_entities.Recovery{}, false, fmt.Errorf("recovery repository: find pending: %w", err)
	}

	return rec, true, nil
}

func (r *RecoveryRepository) FindLatestCompletedByAccount(ctx context.Context, accountID uuid.UUID) (recovery_entities.Recovery, bool, error) {
	filter := bson.M{"account_id": accountID, "status": recovery_entities.StatusComplete}
	opts := options.FindOne().SetSort(bson.M{"completed_at": -1})

	var rec recovery_entities.Recovery
	err := r.collection.FindOne(ctx, filter, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return recovery_entities.Recovery{}, false, nil
	}
	if err != nil {
		return recovery_entities.Recovery{}, false, fmt.Errorf("recovery repository: find latest completed: %w", err)
	}

	return rec, true, nil
}

func (r *RecoveryRepository) FindByPendingDestinationPubkey(ctx context.Context, role string, pubkey []byte) (uuid.UUID, bool, error) {
	field := destinationFieldForRole(role)
	filter := bson.M{field: pubkey, "status": recovery_entities.StatusPending}

	var rec recovery_entities.Recovery
	err := r.collection.FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("recovery repository: find by pending destination pubkey: %w", err)
	}

	return rec.AccountID, true, nil
}

func (r *RecoveryRepository) HasRecentCanceledInContest(ctx context.Context, accountID uuid.UUID, since time.Time) (bool, error) {
	filter := bson.M{
		"account_id":   accountID,
		"status":       recovery_entities.StatusCanceledInContest,
		"contested_at": bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("recovery repository: has recent canceled in contest: %w", err)
	}

	return count > 0, nil
}

func destinationFieldForRole(role string) string {
	switch role {
	case "app":
		return "dest_app_pubkey"
	case "hw":
		return "dest_hw_pubkey"
	default:
		return "dest_recovery_pubkey"
	}
}
