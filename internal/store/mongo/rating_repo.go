package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

type RatingRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewRatingRepo(db *mongodrv.Database, opTimeout time.Duration) *RatingRepoMongo {
	return &RatingRepoMongo{
		coll:      db.Collection(ColRatingFactors),
		opTimeout: opTimeout,
	}
}

// Lookup returns the multiplier of a row matching (category, key) whose
// validity interval contains asOf. Several rows may match; the sort on _id
// makes the pick deterministic without implying precedence.
func (repo *RatingRepoMongo) Lookup(ctx context.Context, category core.InsuranceCategory, key string, asOf time.Time) (decimal.Decimal, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	day := encodeDate(asOf)
	filter := bson.M{
		"category":   string(category),
		"factor_key": key,
		"valid_from": bson.M{"$lte": day},
		"$or": []bson.M{
			{"valid_to": bson.M{"$exists": false}},
			{"valid_to": ""},
			{"valid_to": bson.M{"$gte": day}},
		},
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})

	var doc RatingFactorDoc
	err := repo.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, fmt.Errorf("rating_factors.findOne: %w", err)
	}
	return decodeDecimal(doc.Multiplier), true, nil
}

func (repo *RatingRepoMongo) Put(ctx context.Context, f core.RatingFactor) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	if err := f.Validate(); err != nil {
		return err
	}

	doc := toRatingFactorDoc(f)
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("rating_factors.replace: %w", err)
	}
	return nil
}

// Retire closes an open-ended row by setting its valid_to.
func (repo *RatingRepoMongo) Retire(ctx context.Context, id string, validTo time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	res, err := repo.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"valid_to": encodeDate(validTo)}})
	if err != nil {
		return fmt.Errorf("rating_factors.update: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: rating factor %s", core.ErrNotFound, id)
	}
	return nil
}
