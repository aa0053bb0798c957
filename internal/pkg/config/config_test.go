package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"ADMIN_JWT_SECRET": "s3cret",
	}))
	if err != nil {
		t.Fatalf("LoadWith returned error: %v", err)
	}

	if cfg.Port != "8080" || cfg.Env != "development" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.Mongo.URI != "mongodb://localhost:27017" || cfg.Mongo.Database != "accounts" || cfg.Mongo.UsersCollection != "users" {
		t.Fatalf("unexpected mongo defaults: %+v", cfg.Mongo)
	}
	if cfg.Mongo.ConnectTimeout != 10*time.Second || cfg.Mongo.MaxPoolSize != 100 {
		t.Fatalf("unexpected mongo pool defaults: %+v", cfg.Mongo)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.KeyStream != "account:keys" || cfg.Redis.DialTimeout != 5*time.Second {
		t.Fatalf("unexpected redis defaults: %+v", cfg.Redis)
	}
	if cfg.Accounts.KeyValidityDays != 7 || !cfg.Accounts.EnforceKeyExpiration || cfg.Accounts.DeliveryWorkers != 4 {
		t.Fatalf("unexpected account defaults: %+v", cfg.Accounts)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env by default")
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"ADMIN_JWT_SECRET":       "s3cret",
		"ENV":                    "production",
		"MONGO_DB":               "prod_accounts",
		"MONGO_CONNECT_TIMEOUT":  "2s",
		"KEY_VALIDITY_DAYS":      "30",
		"ENFORCE_KEY_EXPIRATION": "false",
	}))
	if err != nil {
		t.Fatalf("LoadWith returned error: %v", err)
	}
	if cfg.IsDevelopment() {
		t.Fatalf("expected production env")
	}
	if cfg.Mongo.Database != "prod_accounts" || cfg.Mongo.ConnectTimeout != 2*time.Second {
		t.Fatalf("mongo db = %q", cfg.Mongo.Database)
	}
	if cfg.Accounts.KeyValidityDays != 30 || cfg.Accounts.EnforceKeyExpiration {
		t.Fatalf("unexpected account config: %+v", cfg.Accounts)
	}
}

func TestLoadWith_MissingSecret(t *testing.T) {
	if _, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{})); err == nil {
		t.Fatalf("expected error when ADMIN_JWT_SECRET is missing")
	}
}

func TestLoadWith_InvalidValidity(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"ADMIN_JWT_SECRET":  "s3cret",
		"KEY_VALIDITY_DAYS": "0",
	}))
	if err == nil {
		t.Fatalf("expected error for non-positive KEY_VALIDITY_DAYS")
	}
}
