package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
	"github.com/seaborne-data/restmed/factory"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx := context.Background()

	pool, err := createDatabasePool(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	mediation, err := factory.NewMediation(ctx, cfg, pool)
	if err != nil {
		sugar.Fatalf("failed to assemble mediation layer: %v", err)
	}
	sugar.Infow("mediation layer ready", "models", mediation.Models())

	server := NewServer(mediation, cfg.Query)
	server.RegisterRoutes()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("starting server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCtx.Done()
	sugar.Infow("shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		sugar.Errorw("shutdown incomplete", "err", err)
	}
}

// loadConfig reads the YAML config named by CONFIG_PATH, then applies
// environment overrides for the settings that differ per deployment.
func loadConfig() (*restmed.Config, error) {
	cfg, err := restmed.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.Username = getEnv("DB_USER", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)
	if getEnv("DB_USE_DSQL_AUTH", "") == "true" {
		cfg.Database.UseDSQLAuth = true
	}
	cfg.Database.AWSRegion = getEnv("AWS_REGION", cfg.Database.AWSRegion)

	cfg.Schemas.Directory = getEnv("SCHEMA_DIR", cfg.Schemas.Directory)
	cfg.Schemas.S3Bucket = getEnv("SCHEMA_S3_BUCKET", cfg.Schemas.S3Bucket)
	cfg.Schemas.S3Prefix = getEnv("SCHEMA_S3_PREFIX", cfg.Schemas.S3Prefix)

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	return cfg, cfg.Validate()
}

func buildLogger(cfg restmed.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err == nil {
		zapCfg.Level = level
	}
	return zapCfg.Build()
}

// createDatabasePool builds the pgx pool. With DSQL auth enabled the
// password is replaced by a freshly generated IAM connect token.
func createDatabasePool(ctx context.Context, cfg restmed.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.UseDSQLAuth {
		token, err := generateDSQLToken(ctx, cfg)
		if err != nil {
			return nil, err
		}
		cfg.Password = token
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func generateDSQLToken(ctx context.Context, cfg restmed.DatabaseConfig) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load aws config: %w", err)
	}
	if cfg.AWSRegion != "" {
		awsCfg.Region = cfg.AWSRegion
	}
	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("failed to generate dsql auth token: %w", err)
	}
	zap.S().Infow("generated IAM auth token for database connection")
	return token, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
