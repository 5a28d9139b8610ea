package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
	transporthttp "github.com/Assamir/kiro-demo-sub001/internal/http"
	"github.com/Assamir/kiro-demo-sub001/internal/http/handlers"
	"github.com/Assamir/kiro-demo-sub001/internal/http/health"
	"github.com/Assamir/kiro-demo-sub001/internal/jobs"
	"github.com/Assamir/kiro-demo-sub001/internal/middleware"
	"github.com/Assamir/kiro-demo-sub001/internal/platform/config"
	"github.com/Assamir/kiro-demo-sub001/internal/platform/logging"
	"github.com/Assamir/kiro-demo-sub001/internal/store/dynamo"
	"github.com/Assamir/kiro-demo-sub001/internal/store/mongo"
	"github.com/Assamir/kiro-demo-sub001/internal/store/ratingcache"
)

type repos struct {
	rating   core.RatingRepo
	policies core.PolicyRepo
	clients  core.ClientRepo
	vehicles core.VehicleRepo
	pinger   health.Pinger
	close    func(context.Context) error
}

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildRepos(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize store (%s): %v", cfg.DBType, err)
	}
	defer store.close(context.Background())

	rating := store.rating
	if cfg.RedisAddr != "" {
		cached, err := ratingcache.New(rating, ratingcache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      time.Duration(cfg.RatingCacheTTLSec) * time.Second,
		})
		if err != nil {
			log.Fatalf("failed to initialize rating cache: %v", err)
		}
		defer cached.Close()
		rating = cached
		logger.Info("rating cache enabled", "addr", cfg.RedisAddr)
	}

	engine, err := core.NewRatingEngine(core.DefaultRatingConfig(), rating)
	if err != nil {
		log.Fatalf("failed to build rating engine: %v", err)
	}
	policySvc := core.NewPolicyService(store.policies, store.clients, store.vehicles, engine)

	// Background expiry reminders.
	expiryWorker := jobs.NewExpiryWorker(
		policySvc,
		cfg.ExpiryReminderDays,
		time.Duration(cfg.WorkerIntervalSec)*time.Second,
		logger,
	)
	go expiryWorker.Start(ctx)

	// HTTP surface.
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPM, time.Minute)
	defer rateLimiter.Stop()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(time.Duration(cfg.HTTPRequestTimeoutSec) * time.Second))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.LimitRequestBody(middleware.MaxBodySize))
	r.Use(middleware.SimpleAPIKey(cfg.APIKey))
	r.Use(rateLimiter.Middleware)

	r.Mount("/", health.New(logger, store.pinger, 2*time.Second))
	r.Mount("/api/v1", transporthttp.NewRouter(transporthttp.Deps{
		Mounts: []handlers.Mountable{
			handlers.NewPolicyHandler(policySvc, logger),
			handlers.NewPremiumHandler(policySvc, logger),
		},
	}))

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", "addr", addr, "env", cfg.Env, "db", cfg.DBType)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

func buildRepos(ctx context.Context, cfg *config.Config) (repos, error) {
	switch cfg.DBType {
	case "mongo":
		client, err := mongo.NewClient(cfg)
		if err != nil {
			return repos{}, err
		}
		if err := mongo.EnsureIndexes(ctx, client.DB); err != nil {
			return repos{}, fmt.Errorf("ensure indexes: %w", err)
		}
		opTimeout := time.Duration(cfg.MongoOpTimeoutMs) * time.Millisecond
		return repos{
			rating:   mongo.NewRatingRepo(client.DB, opTimeout),
			policies: mongo.NewPolicyRepo(client.DB, opTimeout),
			clients:  mongo.NewClientRepo(client.DB, opTimeout),
			vehicles: mongo.NewVehicleRepo(client.DB, opTimeout),
			pinger:   client,
			close:    client.Close,
		}, nil

	case "dynamodb":
		client, err := dynamo.NewClient(ctx, dynamo.Config{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.DynamoDBEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return repos{}, err
		}
		if err := dynamo.EnsureTables(ctx, client.DB, logging.New(cfg.Env)); err != nil {
			return repos{}, fmt.Errorf("ensure tables: %w", err)
		}
		return repos{
			rating:   dynamo.NewRatingRepo(client.DB),
			policies: dynamo.NewPolicyRepo(client.DB),
			clients:  dynamo.NewClientRepo(client.DB),
			vehicles: dynamo.NewVehicleRepo(client.DB),
			pinger:   client,
			close:    func(context.Context) error { return nil },
		}, nil

	default:
		return repos{}, fmt.Errorf("unsupported DB_TYPE %q", cfg.DBType)
	}
}
