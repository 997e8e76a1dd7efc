package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
)

var _ notification_out.Repository = (*NotificationRepository)(nil)

// NotificationRepository is the Mongo-backed notification_out.Repository,
// wrapping VersionedRepository for CAS writes and adding the idempotency
// and due-schedule queries spec.md §4.5 needs.
type NotificationRepository struct {
	*VersionedRepository[notification_entities.Notification]
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		VersionedRepository: NewVersionedRepository[notification_entities.Notification](db, "notifications"),
		collection:           db.Collection("notifications"),
	}
}

func (r *NotificationRepository) FindByIdempotencyKey(ctx context.Context, accountID uuid.UUID, payloadType notification_entities.PayloadType, executionDateTime time.Time) (notification_entities.Notification, bool, error) {
	filter := bson.M{
		"account_id":          accountID,
		"payload_type":        payloadType,
		"execution_date_time": executionDateTime,
	}

	var n notification_entities.Notification
	err := r.collection.FindOne(ctx, filter).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return notification_entities.Notification{}, false, nil
	}
	if err != nil {
		return notification_entities.Notification{}, false, fmt.Errorf("notification repository: find by idempotency key: %w", err)
	}

	return n, true, nil
}

func (r *NotificationRepository) FindDue(ctx context.Context, before time.Time, limit int) ([]notification_entities.Notification, error) {
	filter := bson.M{
		"delivered":           false,
		"execution_date_time": bson.M{"$lte": before},
	}
	opts := options.Find().SetSort(bson.M{"execution_date_time": 1}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("notification repository: find due: %w", err)
	}
	defer cursor.Close(ctx)

	var due []notification_entities.Notification
	if err := cursor.All(ctx, &due); err != nil {
		return nil, fmt.Errorf("notification repository: find due decode: %w", err)
	}

	return due, nil
}

var _ notification_out.PreferencesRepository = (*PreferencesRepository)(nil)

// PreferencesRepository persists the per-account subscription toggles as
// an upsert-keyed document (account_id is the _id), since there is no
// create/update distinction from the caller's point of view.
type PreferencesRepository struct {
	collection *mongo.Collection
}

func NewPreferencesRepository(db *mongo.Database) *PreferencesRepository {
	return &PreferencesRepository{collection: db.Collection("notification_preferences")}
}

func (r *PreferencesRepository) Get(ctx context.Context, accountID uuid.UUID) (notification_entities.SubscriptionPreferences, bool, error) {
	var prefs notification_entities.SubscriptionPreferences
	err := r.collection.FindOne(ctx, bson.M{"_id": accountID}).Decode(&prefs)
	if err == mongo.ErrNoDocuments {
		return notification_entities.SubscriptionPreferences{}, false, nil
	}
	if err != nil {
		return notification_entities.SubscriptionPreferences{}, false, fmt.Errorf("preferences repository: get: %w", err)
	}

	return prefs, true, nil
}

func (r *PreferencesRepository) Upsert(ctx context.Context, prefs notification_entities.SubscriptionPreferences) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": prefs.AccountID}, prefs, opts)
	if err != nil {
		return fmt.Errorf("preferences repository: upsert: %w", err)
	}

	return nil
}
