package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

type ClientRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewClientRepo(db *mongodrv.Database, opTimeout time.Duration) *ClientRepoMongo {
	return &ClientRepoMongo{
		coll:      db.Collection(ColClients),
		opTimeout: opTimeout,
	}
}

func (repo *ClientRepoMongo) Get(ctx context.Context, id string) (core.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc ClientDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Client{}, core.ErrClientNotFound
		}
		return core.Client{}, fmt.Errorf("clients.findOne: %w", err)
	}
	return fromClientDoc(doc), nil
}

func (repo *ClientRepoMongo) Put(ctx context.Context, c core.Client) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toClientDoc(c)
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("clients.replace: %w", err)
	}
	return nil
}

func (repo *ClientRepoMongo) SearchByName(ctx context.Context, fragment string, limit int) ([]core.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(fragment), Options: "i"}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "full_name", Value: 1}})

	cursor, err := repo.coll.Find(ctx, bson.M{"full_name": pattern}, opts)
	if err != nil {
		return nil, fmt.Errorf("clients.find: %w", err)
	}
	defer cursor.Close(ctx)

	var clients []core.Client
	for cursor.Next(ctx) {
		var doc ClientDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("clients.decode: %w", err)
		}
		clients = append(clients, fromClientDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("clients.cursor: %w", err)
	}
	return clients, nil
}
