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

type VehicleRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewVehicleRepo(db *mongodrv.Database, opTimeout time.Duration) *VehicleRepoMongo {
	return &VehicleRepoMongo{
		coll:      db.Collection(ColVehicles),
		opTimeout: opTimeout,
	}
}

func (repo *VehicleRepoMongo) Get(ctx context.Context, id string) (core.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc VehicleDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Vehicle{}, core.ErrVehicleNotFound
		}
		return core.Vehicle{}, fmt.Errorf("vehicles.findOne: %w", err)
	}
	return fromVehicleDoc(doc), nil
}

func (repo *VehicleRepoMongo) Put(ctx context.Context, v core.Vehicle) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toVehicleDoc(v)
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("vehicles.replace: %w", err)
	}
	return nil
}
