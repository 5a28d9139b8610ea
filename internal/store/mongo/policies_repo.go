package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

type PolicyRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewPolicyRepo(db *mongodrv.Database, opTimeout time.Duration) *PolicyRepoMongo {
	return &PolicyRepoMongo{
		coll:      db.Collection(ColPolicies),
		opTimeout: opTimeout,
	}
}

func (repo *PolicyRepoMongo) Create(ctx context.Context, policy core.Policy) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toPolicyDoc(policy)
	_, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		// 11000 on the unique number index means the number lost a race.
		var we mongodrv.WriteException
		if errors.As(err, &we) {
			for _, e := range we.WriteErrors {
				if e.Code == 11000 {
					return core.ErrPolicyNumberTaken
				}
			}
		}
		return fmt.Errorf("policies.insert: %w", err)
	}
	return nil
}

func (repo *PolicyRepoMongo) Update(ctx context.Context, policy core.Policy) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toPolicyDoc(policy)
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("policies.replace: %w", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrPolicyNotFound
	}
	return nil
}

func (repo *PolicyRepoMongo) Get(ctx context.Context, id string) (core.Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PolicyDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Policy{}, core.ErrPolicyNotFound
		}
		return core.Policy{}, fmt.Errorf("policies.findOne: %w", err)
	}
	return fromPolicyDoc(doc), nil
}

func (repo *PolicyRepoMongo) GetByNumber(ctx context.Context, number string) (core.Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PolicyDoc
	err := repo.coll.FindOne(ctx, bson.M{"number": number}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Policy{}, core.ErrPolicyNotFound
		}
		return core.Policy{}, fmt.Errorf("policies.findByNumber: %w", err)
	}
	return fromPolicyDoc(doc), nil
}

func (repo *PolicyRepoMongo) NumberExists(ctx context.Context, number string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	count, err := repo.coll.CountDocuments(ctx, bson.M{"number": number}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("policies.countByNumber: %w", err)
	}
	return count > 0, nil
}

func (repo *PolicyRepoMongo) List(ctx context.Context, filter core.PolicyFilter, limit, offset int) ([]core.Policy, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	mongoFilter := bson.M{}
	if filter.ClientID != "" {
		mongoFilter["client_id"] = filter.ClientID
	}
	if filter.Status != "" {
		mongoFilter["status"] = string(filter.Status)
	}
	if filter.Category != "" {
		mongoFilter["category"] = string(filter.Category)
	}
	if filter.ActiveOn != nil {
		day := encodeDate(*filter.ActiveOn)
		mongoFilter["start_date"] = bson.M{"$lte": day}
		mongoFilter["end_date"] = bson.M{"$gte": day}
	}
	if filter.ExpiringAfter != nil && filter.ExpiringBefore != nil {
		mongoFilter["end_date"] = bson.M{
			"$gte": encodeDate(*filter.ExpiringAfter),
			"$lte": encodeDate(*filter.ExpiringBefore),
		}
	}

	total, err := repo.coll.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("policies.count: %w", err)
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "issue_date", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := repo.coll.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("policies.find: %w", err)
	}
	defer cursor.Close(ctx)

	var policies []core.Policy
	for cursor.Next(ctx) {
		var doc PolicyDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("policies.decode: %w", err)
		}
		policies = append(policies, fromPolicyDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("policies.cursor: %w", err)
	}

	return policies, total, nil
}
