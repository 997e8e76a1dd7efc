package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	inheritance_entities "github.com/coldkeep/custody-api/pkg/domain/inheritance/entities"
	inheritance_out "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/out"
)

var _ inheritance_out.Repository = (*InheritanceRepository)(nil)

// packageRow is the inheritance_packages collection's document shape:
// packages are keyed by relationship, independent of any particular
// claim's lifecycle, since they're uploaded before a claim exists.
type packageRow struct {
	RelationshipID uuid.UUID                   `bson:"_id"`
	Package        inheritance_entities.Package `bson:"package"`
}

// InheritanceRepository is the Mongo-backed inheritance_out.Repository,
// wrapping VersionedRepository for claim CAS writes and adding a sibling
// collection for the relationship-keyed package upload (spec.md §4.8).
type InheritanceRepository struct {
	*VersionedRepository[inheritance_entities.Claim]
	claims   *mongo.Collection
	packages *mongo.Collection
}

func NewInheritanceRepository(db *mongo.Database) *InheritanceRepository {
	return &InheritanceRepository{
		VersionedRepository: NewVersionedRepository[inheritance_entities.Claim](db, "inheritance_claims"),
		claims:               db.Collection("inheritance_claims"),
		packages:              db.Collection("inheritance_packages"),
	}
}

func (r *InheritanceRepository) FindNonTerminalByRelationship(ctx context.Context, relationshipID uuid.UUID) (inheritance_entities.Claim, bool, error) {
	filter := bson.M{
		"relationship_id": relationshipID,
		"status":          bson.M{"$nin": []inheritance_entities.Status{inheritance_entities.StatusCanceled, inheritance_entities.StatusCompleted}},
	}

	var claim inheritance_entities.Claim
	err := r.claims.FindOne(ctx, filter).Decode(&claim)
	if err == mongo.ErrNoDocuments {
		return inheritance_entities.Claim{}, false, nil
	}
	if err != nil {
		return inheritance_entities.Claim{}, false, fmt.Errorf("inheritance repository: find non-terminal by relationship: %w", err)
	}

	return claim, true, nil
}

func (r *InheritanceRepository) FindPackageByRelationship(ctx context.Context, relationshipID uuid.UUID) (inheritance_entities.Package, bool, error) {
	var row packageRow
	err := r.packages.FindOne(ctx, bson.M{"_id": relationshipID}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return inheritance_entities.Package{}, false, nil
	}
	if err != nil {
		return inheritance_entities.Package{}, false, fmt.Errorf("inheritance repository: find package: %w", err)
	}

	return row.Package, true, nil
}

func (r *InheritanceRepository) UpsertPackage(ctx context.Context, relationshipID uuid.UUID, pkg inheritance_entities.Package) error {
	filter := bson.M{"_id": relationshipID}
	update := bson.M{"$set": bson.M{"package": pkg}}
	opts := options.Update().SetUpsert(true)

	_, err := r.packages.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("inheritance repository: upsert package: %w", err)
	}

	return nil
}
