/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package config loads process configuration from the environment, with an
// optional .env file underneath.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
)

// Config is the process configuration.
type Config struct {
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	MaxPageSize int64
	SeedOnStart bool

	EntityStore string // memory or mongo
	TypeStore   string // memory, mongo or dynamodb

	Mongo MongoConfig
	AWS   AWSConfig
	Sync  SyncConfig
}

// MongoConfig selects the MongoDB database and collections.
type MongoConfig struct {
	URI              string
	Database         string
	EntityCollection string
	TypeCollection   string
}

// AWSConfig configures the DynamoDB type store.
type AWSConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Table     string
	Endpoint  string
}

// SyncConfig configures bulk sync from Postgres.
type SyncConfig struct {
	DatabaseURL string
	Table       string
	Concurrency int
	PageSize    int
	MaxRetries  int
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MAX_PAGE_SIZE", 500)
	v.SetDefault("SEED_ON_START", true)
	v.SetDefault("ENTITY_STORE", BackendMemory)
	v.SetDefault("TYPE_STORE", BackendMemory)
	v.SetDefault("MONGO_DATABASE", "eserp")
	v.SetDefault("ENTITY_COLLECTION", "entities")
	v.SetDefault("TYPE_COLLECTION", "entity_types")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SYNC_TABLE", "entities")
	v.SetDefault("SYNC_CONCURRENCY", 4)
	v.SetDefault("SYNC_PAGE_SIZE", 500)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
}

// Load reads configuration. Files named in envFiles are loaded into the
// process environment first when they exist; variables already set win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		LogLevel:    strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:   strings.ToLower(v.GetString("LOG_FORMAT")),
		MaxPageSize: v.GetInt64("MAX_PAGE_SIZE"),
		SeedOnStart: v.GetBool("SEED_ON_START"),
		EntityStore: strings.ToLower(v.GetString("ENTITY_STORE")),
		TypeStore:   strings.ToLower(v.GetString("TYPE_STORE")),
		Mongo: MongoConfig{
			URI:              v.GetString("MONGO_URI"),
			Database:         v.GetString("MONGO_DATABASE"),
			EntityCollection: v.GetString("ENTITY_COLLECTION"),
			TypeCollection:   v.GetString("TYPE_COLLECTION"),
		},
		AWS: AWSConfig{
			Region:    v.GetString("AWS_REGION"),
			AccessKey: v.GetString("AWS_ACCESS_KEY"),
			SecretKey: v.GetString("AWS_SECRET_KEY"),
			Table:     v.GetString("AWS_DDB_TABLE"),
			Endpoint:  v.GetString("AWS_DDB_ENDPOINT"),
		},
		Sync: SyncConfig{
			DatabaseURL: v.GetString("SYNC_DATABASE_URL"),
			Table:       v.GetString("SYNC_TABLE"),
			Concurrency: v.GetInt("SYNC_CONCURRENCY"),
			PageSize:    v.GetInt("SYNC_PAGE_SIZE"),
			MaxRetries:  v.GetInt("SYNC_MAX_RETRIES"),
		},
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.MaxPageSize < 1 {
		return fmt.Errorf("MAX_PAGE_SIZE must be >= 1")
	}

	switch c.EntityStore {
	case BackendMemory, BackendMongo:
	default:
		return fmt.Errorf("ENTITY_STORE must be memory or mongo, got %q", c.EntityStore)
	}
	switch c.TypeStore {
	case BackendMemory, BackendMongo:
	case BackendDynamoDB:
		if c.AWS.Table == "" {
			return fmt.Errorf("AWS_DDB_TABLE is required when TYPE_STORE is dynamodb")
		}
		if c.AWS.Region == "" {
			return fmt.Errorf("AWS_REGION is required when TYPE_STORE is dynamodb")
		}
		if (c.AWS.AccessKey == "") != (c.AWS.SecretKey == "") {
			return fmt.Errorf("AWS_ACCESS_KEY and AWS_SECRET_KEY must be set together")
		}
	default:
		return fmt.Errorf("TYPE_STORE must be memory, mongo or dynamodb, got %q", c.TypeStore)
	}

	if (c.EntityStore == BackendMongo || c.TypeStore == BackendMongo) && c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required when a store uses mongo")
	}
	if c.Sync.Concurrency < 1 || c.Sync.PageSize < 1 || c.Sync.MaxRetries < 0 {
		return fmt.Errorf("SYNC_CONCURRENCY and SYNC_PAGE_SIZE must be >= 1 and SYNC_MAX_RETRIES >= 0")
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
