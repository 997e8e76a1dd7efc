package db

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	relationship_entities "github.com/coldkeep/custody-api/pkg/domain/relationship/entities"
	relationship_out "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/out"
)

var _ relationship_out.Repository = (*RelationshipRepository)(nil)

// RelationshipRepository is the Mongo-backed relationship_out.Repository,
// wrapping VersionedRepository for CAS writes and adding the two
// vantage-point queries the lifecycle needs (spec.md §4.7).
type RelationshipRepository struct {
	*VersionedRepository[relationship_entities.Relationship]
}

func NewRelationshipRepository(db *mongo.Database) *RelationshipRepository {
	return &RelationshipRepository{
		VersionedRepository: NewVersionedRepository[relationship_entities.Relationship](db, "relationships"),
	}
}

func (r *RelationshipRepository) FindByCustomer(ctx context.Context, accountID uuid.UUID) ([]relationship_entities.Relationship, error) {
	return r.Find(ctx, bson.M{"customer_account_id": accountID})
}

func (r *RelationshipRepository) FindByTrustedContact(ctx context.Context, accountID uuid.UUID) ([]relationship_entities.Relationship, error) {
	return r.Find(ctx, bson.M{"trusted_contact_account_id": accountID})
}
