package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
	"github.com/Assamir/kiro-demo-sub001/internal/platform/config"
	"github.com/Assamir/kiro-demo-sub001/internal/platform/ids"
	"github.com/Assamir/kiro-demo-sub001/internal/platform/logging"
	"github.com/Assamir/kiro-demo-sub001/internal/store/dynamo"
	"github.com/Assamir/kiro-demo-sub001/internal/store/mongo"
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rating, clients, vehicles, err := buildRepos(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize store", "db", cfg.DBType, "err", err)
		return
	}

	log.Info("seeding rating table")
	seedRatingFactors(ctx, log, rating)

	log.Info("seeding demo clients and vehicles")
	seedRegistry(ctx, log, clients, vehicles)

	log.Info("done seeding")
}

func buildRepos(ctx context.Context, cfg *config.Config, log *slog.Logger) (core.RatingRepo, core.ClientRepo, core.VehicleRepo, error) {
	switch cfg.DBType {
	case "mongo":
		client, err := mongo.NewClient(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mongo.EnsureIndexes(ctx, client.DB); err != nil {
			return nil, nil, nil, err
		}
		opTimeout := 5 * time.Second
		return mongo.NewRatingRepo(client.DB, opTimeout),
			mongo.NewClientRepo(client.DB, opTimeout),
			mongo.NewVehicleRepo(client.DB, opTimeout),
			nil

	case "dynamodb":
		client, err := dynamo.NewClient(ctx, dynamo.Config{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.DynamoDBEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := dynamo.EnsureTables(ctx, client.DB, log); err != nil {
			return nil, nil, nil, err
		}
		return dynamo.NewRatingRepo(client.DB),
			dynamo.NewClientRepo(client.DB),
			dynamo.NewVehicleRepo(client.DB),
			nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.DBType)
	}
}

// seedRatingFactors inserts the default multiplier table: vehicle-age rows
// per category, engine and power buckets, and the baseline coverage factor.
// All rows are open-ended from the start of 2024.
func seedRatingFactors(ctx context.Context, log *slog.Logger, repo core.RatingRepo) {
	validFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Age multipliers ramp up for older vehicles.
	ageMultipliers := []string{
		"0.90", "0.95", "1.00", "1.05", "1.10", "1.15",
		"1.20", "1.25", "1.30", "1.35", "1.40",
	}

	var factors []core.RatingFactor
	for _, cat := range core.Categories() {
		for age, mult := range ageMultipliers {
			factors = append(factors, factor(cat, fmt.Sprintf("%s%d", core.FactorVehicleAgePrefix, age), mult, validFrom))
		}
		factors = append(factors,
			factor(cat, core.FactorEngineSmall, "0.95", validFrom),
			factor(cat, core.FactorEngineMedium, "1.00", validFrom),
			factor(cat, core.FactorEngineLarge, "1.15", validFrom),
			factor(cat, core.FactorEngineXLarge, "1.30", validFrom),
			factor(cat, core.FactorPowerLow, "0.95", validFrom),
			factor(cat, core.FactorPowerMedium, "1.00", validFrom),
			factor(cat, core.FactorPowerHigh, "1.20", validFrom),
			factor(cat, core.FactorPowerVeryHigh, "1.40", validFrom),
			factor(cat, core.FactorCoverageStandard, "1.00", validFrom),
		)
	}

	for _, f := range factors {
		if err := repo.Put(ctx, f); err != nil {
			log.Error("failed to seed rating factor", "category", f.Category, "key", f.FactorKey, "err", err)
		}
	}
	log.Info("rating factors seeded", "count", len(factors))
}

func factor(cat core.InsuranceCategory, key, mult string, validFrom time.Time) core.RatingFactor {
	return core.RatingFactor{
		ID:         ids.New(),
		Category:   cat,
		FactorKey:  key,
		Multiplier: decimal.RequireFromString(mult),
		ValidFrom:  validFrom,
	}
}

func seedRegistry(ctx context.Context, log *slog.Logger, clients core.ClientRepo, vehicles core.VehicleRepo) {
	demoClients := []core.Client{
		{ID: "client-jan-kowalski", FullName: "Jan Kowalski", PESEL: "85010112345", Email: "jan.kowalski@example.com", Phone: "+48 600 100 200"},
		{ID: "client-anna-nowak", FullName: "Anna Nowak", PESEL: "90050554321", Email: "anna.nowak@example.com", Phone: "+48 600 300 400"},
		{ID: "client-piotr-wisniewski", FullName: "Piotr Wisniewski", PESEL: "78121067890", Email: "piotr.w@example.com"},
	}

	demoVehicles := []core.Vehicle{
		{
			ID: "vehicle-wa12345", Registration: "WA 12345",
			Make: "Toyota", Model: "Corolla",
			EngineCapacityCCM: 1500, EnginePowerKW: 140,
			FirstRegistration: time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: "vehicle-kr98765", Registration: "KR 98765",
			Make: "Volkswagen", Model: "Golf",
			EngineCapacityCCM: 1984, EnginePowerKW: 180,
			FirstRegistration: time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: "vehicle-gd55555", Registration: "GD 55555",
			Make: "Fiat", Model: "Panda",
			EngineCapacityCCM: 999, EnginePowerKW: 51,
			FirstRegistration: time.Date(2012, 9, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, c := range demoClients {
		if err := clients.Put(ctx, c); err != nil {
			log.Error("failed to seed client", "client", c.ID, "err", err)
		}
	}
	for _, v := range demoVehicles {
		if err := vehicles.Put(ctx, v); err != nil {
			log.Error("failed to seed vehicle", "vehicle", v.ID, "err", err)
		}
	}
	log.Info("registry seeded", "clients", len(demoClients), "vehicles", len(demoVehicles))
}
