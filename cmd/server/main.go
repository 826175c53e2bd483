package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/banking/aml-engine/internal/alert"
	"github.com/banking/aml-engine/internal/api"
	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/crypto"
	"github.com/banking/aml-engine/internal/events"
	"github.com/banking/aml-engine/internal/evidence"
	"github.com/banking/aml-engine/internal/pipeline"
	"github.com/banking/aml-engine/internal/repository/elasticsearch"
	"github.com/banking/aml-engine/internal/repository/postgres"
	"github.com/banking/aml-engine/internal/repository/s3"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("Starting AML Detection Engine...")

	// 3. Alert signing
	signer, err := crypto.NewAlertSigner(cfg.Signing.AlertHMACSecret)
	if err != nil {
		sugar.Fatalf("Failed to initialize alert signer: %v", err)
	}

	// 4. Repositories
	pgStore, err := postgres.New(cfg.Database)
	if err != nil {
		sugar.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	alertIndex, err := elasticsearch.NewAlertIndex(cfg.Elasticsearch)
	if err != nil {
		sugar.Warnf("Failed to connect to Elasticsearch: %v (alert search will be unavailable)", err)
	}

	archive, err := s3.NewArchiveRepository(context.Background(), cfg.S3)
	if err != nil {
		sugar.Fatalf("Failed to initialize S3 archive: %v", err)
	}

	// 5. Engine
	engine := evidence.NewEngine(pgStore, cfg.Detection, logger)

	var indexer alert.Indexer
	var searcher api.AlertSearcher
	if alertIndex != nil {
		indexer = alertIndex
		searcher = alertIndex
	}
	alertService := alert.NewService(pgStore, engine, signer, indexer, archive, cfg.Detection, logger)
	pipe := pipeline.New(pgStore, engine, alertService, cfg.Detection, logger)

	// 6. Kafka Consumer
	consumer, err := events.NewTransactionConsumer(cfg.Kafka, pipe, logger)
	if err != nil {
		sugar.Fatalf("Failed to create Kafka consumer: %v", err)
	}

	// Start Consumer in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sugar.Info("Starting Kafka consumer loop...")
		if err := consumer.Start(ctx); err != nil {
			sugar.Errorf("Kafka consumer failed: %v", err)
		}
	}()
	defer consumer.Close()

	// 7. API Server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler := api.NewHandler(pipe, engine, alertService, pgStore, searcher)

	apiGroup := e.Group("/aml")

	// Security: Add JWT Authentication
	keyData, err := os.ReadFile(cfg.Auth.JWTPublicKeyPath)
	var signingKey interface{}
	if err == nil {
		signingKey, err = jwt.ParseRSAPublicKeyFromPEM(keyData)
		if err != nil {
			sugar.Warnf("Failed to parse JWT public key: %v", err)
		}
	} else {
		sugar.Warnf("JWT public key not found at %s: %v", cfg.Auth.JWTPublicKeyPath, err)
	}

	if signingKey != nil {
		config := echojwt.Config{
			SigningKey:    signingKey,
			SigningMethod: "RS256",
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(jwt.MapClaims)
			},
		}
		apiGroup.Use(echojwt.WithConfig(config))
		sugar.Info("JWT Authentication enabled for /aml/*")
	} else {
		sugar.Warn("JWT Authentication DISABLED - Missing Public Key (Security Risk)")
	}

	handler.RegisterRoutes(apiGroup)

	// Health Check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Start Server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Shutting down the server: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Fatal(err)
	}
}
