package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	common "github.com/coldkeep/custody-api/pkg/domain"
)

// Versioned is implemented by every entity persisted under compare-and-swap:
// a monotonically increasing version field guards every mutation, per
// spec.md §5/§13. Adapted from the teacher's MongoDBRepository[T], which
// does a plain "$set" Update with no version guard at all.
type Versioned interface {
	common.Entity
	GetVersion() int64
	SetVersion(int64)
}

// VersionedRepository is a generic Mongo-backed store doing CAS writes on a
// versioned document per entity, the persistence adapter named in spec.md
// as C13.
type VersionedRepository[T Versioned] struct {
	collection *mongo.Collection
}

func NewVersionedRepository[T Versioned](db *mongo.Database, collectionName string) *VersionedRepository[T] {
	return &VersionedRepository[T]{
		collection: db.Collection(collectionName),
	}
}

// Create inserts a brand-new document at version 1. A duplicate _id is a
// persistence-layer conflict (common.NewErrAlreadyExists), the CAS loser
// path on create per spec.md §7 ("DataAlreadyExists").
func (r *VersionedRepository[T]) Create(ctx context.Context, entity T) error {
	entity.SetVersion(1)

	_, err := r.collection.InsertOne(ctx, entity)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.NewErrAlreadyExists("", "_id", entity.GetID())
		}
		slog.ErrorContext(ctx, "versioned repository create failed", "error", err)
		return fmt.Errorf("create: %w", err)
	}

	return nil
}

func (r *VersionedRepository[T]) GetByID(ctx context.Context, id uuid.UUID) (T, error) {
	var entity T

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entity)
	if err != nil {
		var zero T
		if err == mongo.ErrNoDocuments {
			return zero, common.NewErrNotFound("", "_id", id)
		}
		slog.ErrorContext(ctx, "versioned repository get failed", "error", err)
		return zero, fmt.Errorf("get by id: %w", err)
	}

	return entity, nil
}

// Update performs a compare-and-swap write: the filter requires the
// in-memory version to still match the stored version, and the write bumps
// it by one. A concurrent writer that won the race leaves this call with
// zero matched documents, surfaced as common.NewErrConflict so the caller
// can retry or fail per spec.md §5's "concurrent loser retries" rule.
func (r *VersionedRepository[T]) Update(ctx context.Context, entity T) error {
	currentVersion := entity.GetVersion()
	nextVersion := currentVersion + 1

	filter := bson.M{"_id": entity.GetID(), "version": currentVersion}

	entity.SetVersion(nextVersion)

	result, err := r.collection.ReplaceOne(ctx, filter, entity)
	if err != nil {
		entity.SetVersion(currentVersion)
		slog.ErrorContext(ctx, "versioned repository update failed", "error", err)
		return fmt.Errorf("update: %w", err)
	}

	if result.MatchedCount == 0 {
		entity.SetVersion(currentVersion)
		return common.NewErrConflict("version mismatch on update: a concurrent writer already advanced this document")
	}

	return nil
}

func (r *VersionedRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		slog.ErrorContext(ctx, "versioned repository delete failed", "error", err)
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (r *VersionedRepository[T]) Find(ctx context.Context, filter bson.M) ([]T, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("find decode: %w", err)
	}

	return results, nil
}
