package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SeedCrypt/server/internal/api/gateway"
	"SeedCrypt/server/internal/config"
	"SeedCrypt/server/internal/pkg/helpers"
	"SeedCrypt/server/internal/services/auth"
	"SeedCrypt/server/internal/services/keyring"
	"SeedCrypt/server/internal/storage"
)

func main() {
	// Load configuration
	cfg := config.Load()
	fmt.Println("Configuration loaded:")
	fmt.Println(cfg)
	helpers.SetDebug(cfg.LogDebug)

	defaults, err := cfg.SeedDefaults()
	if err != nil {
		log.Fatalf("Invalid cipher configuration: %v", err)
	}
	masterKey, err := cfg.MasterKey()
	if err != nil {
		log.Fatalf("Invalid keyring configuration: %v", err)
	}

	// Connect to database with retries
	dbConfig := storage.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}

	var db *storage.DB
	maxRetries := 30
	retryDelay := 2 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = storage.New(dbConfig)
		if err == nil {
			fmt.Printf("✓ Connected to database (attempt %d)\n", attempt)
			break
		}

		if attempt < maxRetries {
			fmt.Printf("✗ Failed to connect to database (attempt %d/%d): %v\n", attempt, maxRetries, err)
			fmt.Printf("  Retrying in %v...\n", retryDelay)
			time.Sleep(retryDelay)
		} else {
			log.Fatalf("Failed to connect to database after %d attempts: %v", maxRetries, err)
		}
	}
	defer db.Close()

	// Initialize database schema
	if err := db.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	fmt.Println("Database schema initialized")

	// Create services
	authService := auth.New(cfg.JWT.Secret, db)
	keyringService, err := keyring.New(db, masterKey, defaults)
	if err != nil {
		log.Fatalf("Failed to create keyring: %v", err)
	}

	// Create gateway server with services
	gatewayServer := gateway.New(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		authService,
		keyringService,
		defaults,
	)

	// Stop on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gatewayServer.Shutdown(ctx); err != nil {
			log.Printf("Shutdown failed: %v", err)
		}
	}()

	// Start gateway server
	if err := gatewayServer.Start(); err != nil {
		log.Fatalf("Gateway server failed: %v", err)
	}
	fmt.Println("Gateway server stopped")
}
