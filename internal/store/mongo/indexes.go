package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := ensureRatingFactorIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure rating_factors indexes: %w", err)
	}
	if err := ensurePolicyIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure policies indexes: %w", err)
	}
	if err := ensureClientIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure clients indexes: %w", err)
	}
	return nil
}

func ensureRatingFactorIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColRatingFactors)
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "factor_key", Value: 1},
				{Key: "valid_from", Value: 1},
			},
			Options: options.Index().SetName("rating_category_key_from"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensurePolicyIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColPolicies)
	models := []mongo.IndexModel{
		newIndex("number", 1, "policies_number_unique", true),
		newIndex("client_id", 1, "policies_client_id", false),
		newIndex("status", 1, "policies_status", false),
		newIndex("end_date", 1, "policies_end_date", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureClientIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColClients)
	models := []mongo.IndexModel{
		newIndex("full_name", 1, "clients_full_name", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func newIndex(field string, asc int32, name string, unique bool) mongo.IndexModel {
	opts := options.Index().SetName(name)
	if unique {
		opts = opts.SetUnique(true)
	}
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: asc}},
		Options: opts,
	}
}
