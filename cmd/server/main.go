// Command server runs the account service HTTP API.
//
//	@title						Account Service API
//	@version					1.0
//	@description				Account registration, activation key issuance and account administration.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/advcontrato/account-service/internal/api"
	"github.com/advcontrato/account-service/internal/api/handler"
	"github.com/advcontrato/account-service/internal/core/service"
	mongodb "github.com/advcontrato/account-service/internal/infrastructure/db/mongo"
	redisdb "github.com/advcontrato/account-service/internal/infrastructure/db/redis"
	"github.com/advcontrato/account-service/internal/infrastructure/queue"
	"github.com/advcontrato/account-service/internal/pkg/config"
	"github.com/advcontrato/account-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:       cfg.LogLevel,
		Pretty:      cfg.IsDevelopment(),
		Service:     "account-service",
		Environment: cfg.Env,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- MongoDB ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongodb disconnect")
		}
	}()

	accountRepo := mongodb.NewAccountRepository(db, cfg.Mongo.UsersCollection)
	if err := accountRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create account indexes")
	}

	// --- Redis ---
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		PoolSize:    cfg.Redis.PoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	// --- Key delivery ---
	publisher := redisdb.NewKeyStreamPublisher(rdb, cfg.Redis.KeyStream)
	dispatcher := queue.NewDispatcher(cfg.Accounts.DeliveryWorkers, publisher, logger.Component("key_dispatcher"))
	dispatcher.Start(ctx)

	// --- Core ---
	accounts := service.NewAccountService(accountRepo, dispatcher, logger.Component("account_service"), service.Options{
		EnforceKeyExpiration: cfg.Accounts.EnforceKeyExpiration,
	})

	e := api.NewRouter(api.Dependencies{
		Accounts: accounts,
		Checks: map[string]handler.DependencyCheck{
			"mongodb": handler.MongoCheck(db),
			"redis":   handler.RedisCheck(rdb),
		},
		AdminJWTSecret:         cfg.AdminJWTSecret,
		DefaultKeyValidityDays: cfg.Accounts.KeyValidityDays,
		Logger:                 logger.Component("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("account service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server stopped")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Requests are done; flush issued keys before the workers lose their context.
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("key dispatcher drain")
	}
	cancel()
}
