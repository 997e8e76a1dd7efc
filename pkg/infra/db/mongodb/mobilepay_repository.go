package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mobilepay_entities "github.com/coldkeep/custody-api/pkg/domain/mobilepay/entities"
	mobilepay_out "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/out"
)

var _ mobilepay_out.Repository = (*MobilePayRepository)(nil)

// MobilePayRepository is the Mongo-backed mobilepay_out.Repository, wrapping
// VersionedRepository for daily-spend CAS writes and adding the
// (account_id, date_local) lookup the sign endpoint upserts against.
type MobilePayRepository struct {
	*VersionedRepository[mobilepay_entities.DailySpend]
	spends *mongo.Collection
}

func NewMobilePayRepository(db *mongo.Database) *MobilePayRepository {
	return &MobilePayRepository{
		VersionedRepository: NewVersionedRepository[mobilepay_entities.DailySpend](db, "mobile_pay_daily_spends"),
		spends:              db.Collection("mobile_pay_daily_spends"),
	}
}

func (r *MobilePayRepository) FindByAccountDate(ctx context.Context, accountID uuid.UUID, dateLocal string) (mobilepay_entities.DailySpend, bool, error) {
	filter := bson.M{"account_id": accountID, "date_local": dateLocal}

	var spend mobilepay_entities.DailySpend
	err := r.spends.FindOne(ctx, filter).Decode(&spend)
	if err == mongo.ErrNoDocuments {
		return mobilepay_entities.DailySpend{}, false, nil
	}
	if err != nil {
		return mobilepay_entities.DailySpend{}, false, fmt.Errorf("mobilepay repository: find by account date: %w", err)
	}

	return spend, true, nil
}
