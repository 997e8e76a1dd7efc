package db

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexDefinition represents a MongoDB index
type IndexDefinition struct {
	Collection string
	Name       string
	Keys       bson.D
	Options    *options.IndexOptions
}

// GetAllIndexes returns all index definitions for the system
func GetAllIndexes() []IndexDefinition {
	return []IndexDefinition{
		// Accounts: lookups by active/historical auth pubkey drive the
		// global pubkey-uniqueness checks in spec.md §3/§8.
		{
			Collection: "accounts",
			Name:       "idx_accounts_auth_keys_app_pubkey",
			Keys: bson.D{
				{Key: "auth_keys_history.app_pubkey", Value: 1},
			},
			Options: options.Index().SetSparse(true),
		},
		{
			Collection: "accounts",
			Name:       "idx_accounts_auth_keys_hw_pubkey",
			Keys: bson.D{
				{Key: "auth_keys_history.hw_pubkey", Value: 1},
			},
			Options: options.Index().SetSparse(true),
		},
		{
			Collection: "accounts",
			Name:       "idx_accounts_auth_keys_recovery_pubkey",
			Keys: bson.D{
				{Key: "auth_keys_history.recovery_pubkey", Value: 1},
			},
			Options: options.Index().SetSparse(true),
		},
		{
			Collection: "accounts",
			Name:       "idx_accounts_touchpoints",
			Keys: bson.D{
				{Key: "touchpoints.kind", Value: 1},
				{Key: "touchpoints.e164", Value: 1},
			},
			Options: options.Index().SetSparse(true),
		},

		// Recoveries: lookups of an account's recoveries by status, plus the
		// destination-pubkey collision lookup (spec.md §4.6).
		{
			Collection: "recoveries",
			Name:       "idx_recoveries_account_status",
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index(),
		},
		{
			Collection: "recoveries",
			Name:       "idx_recoveries_destination_pubkey",
			Keys: bson.D{
				{Key: "dest_app_pubkey", Value: 1},
				{Key: "dest_hw_pubkey", Value: 1},
			},
			Options: options.Index().SetSparse(true),
		},
		{
			Collection: "recoveries",
			Name:       "idx_recoveries_delay_end",
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "delay_end_time", Value: 1},
			},
			Options: options.Index(),
		},

		// Relationships: trusted-contact endorsement lookups (spec.md §4.8).
		{
			Collection: "relationships",
			Name:       "idx_relationships_customer",
			Keys: bson.D{
				{Key: "customer_account_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index(),
		},
		{
			Collection: "relationships",
			Name:       "idx_relationships_trusted_contact",
			Keys: bson.D{
				{Key: "trusted_contact_account_id", Value: 1},
			},
			Options: options.Index().SetSparse(true),
		},
		{
			Collection: "relationships",
			Name:       "idx_relationships_code",
			Keys: bson.D{
				{Key: "invitation_code", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},

		// Inheritance claims: one active claim per benefactor relationship.
		{
			Collection: "inheritance_claims",
			Name:       "idx_inheritance_relationship_status",
			Keys: bson.D{
				{Key: "relationship_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index(),
		},

		// Transaction verifications and mobile-pay admissions: per-account
		// lookups for the out-of-band and daily-spend flows (spec.md §4.9, §4.10).
		{
			Collection: "tx_verifications",
			Name:       "idx_tx_verifications_account_status",
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index(),
		},
		{
			Collection: "mobile_pay_setups",
			Name:       "idx_mobile_pay_setups_account",
			Keys: bson.D{
				{Key: "account_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},

		// Notifications: scheduled-send sweep and dedup key.
		{
			Collection: "notifications",
			Name:       "idx_notifications_scheduled_status",
			Keys: bson.D{
				{Key: "delivered", Value: 1},
				{Key: "execution_date_time", Value: 1},
			},
			Options: options.Index(),
		},
		{
			Collection: "notifications",
			Name:       "idx_notifications_idempotency_key",
			Keys: bson.D{
				{Key: "idempotency_key", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
}

// CreateIndexes creates all indexes for the database
func CreateIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	indexes := GetAllIndexes()

	slog.InfoContext(ctx, "Creating MongoDB indexes", "total_indexes", len(indexes))

	successCount := 0
	errorCount := 0

	for _, idx := range indexes {
		collection := db.Collection(idx.Collection)

		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: idx.Options.SetName(idx.Name),
		}

		indexName, err := collection.Indexes().CreateOne(ctx, model)
		if err != nil {
			// Check if it's a "duplicate key" error (index already exists)
			if mongo.IsDuplicateKeyError(err) {
				slog.WarnContext(ctx, "Index already exists",
					"collection", idx.Collection,
					"index", idx.Name)
				successCount++
				continue
			}

			slog.ErrorContext(ctx, "Failed to create index",
				"collection", idx.Collection,
				"index", idx.Name,
				"error", err)
			errorCount++
			continue
		}

		slog.InfoContext(ctx, "Created index",
			"collection", idx.Collection,
			"index", indexName)
		successCount++
	}

	slog.InfoContext(ctx, "Index creation complete",
		"success", successCount,
		"errors", errorCount,
		"total", len(indexes))

	if errorCount > 0 {
		return fmt.Errorf("failed to create %d indexes", errorCount)
	}

	return nil
}

// DropAllIndexes drops all custom indexes (keeps _id index)
func DropAllIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	indexes := GetAllIndexes()

	slog.InfoContext(ctx, "Dropping MongoDB indexes", "total_indexes", len(indexes))

	successCount := 0
	errorCount := 0

	for _, idx := range indexes {
		collection := db.Collection(idx.Collection)

		_, err := collection.Indexes().DropOne(ctx, idx.Name)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to drop index",
				"collection", idx.Collection,
				"index", idx.Name,
				"error", err)
			errorCount++
			continue
		}

		slog.InfoContext(ctx, "Dropped index",
			"collection", idx.Collection,
			"index", idx.Name)
		successCount++
	}

	slog.InfoContext(ctx, "Index drop complete",
		"success", successCount,
		"errors", errorCount,
		"total", len(indexes))

	if errorCount > 0 {
		return fmt.Errorf("failed to drop %d indexes", errorCount)
	}

	return nil
}

// ListIndexes lists all indexes in a collection
func ListIndexes(ctx context.Context, client *mongo.Client, dbName, collectionName string) ([]bson.M, error) {
	collection := client.Database(dbName).Collection(collectionName)
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer cursor.Close(ctx)

	var indexes []bson.M
	if err := cursor.All(ctx, &indexes); err != nil {
		return nil, fmt.Errorf("failed to decode indexes: %w", err)
	}

	return indexes, nil
}
