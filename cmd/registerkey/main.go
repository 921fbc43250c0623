package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/secrets"
	apikeyRepoImpl "github.com/skedlab/extractor-api/internal/storage/postgres"
	"github.com/skedlab/extractor-api/pkg/logger"
)

// registerkey is an operator tool for seeding the key pool outside of the API,
// e.g. before the first server instance is deployed.
func main() {
	nickname := flag.String("nickname", "", "Unique nickname for the new key (required)")
	provider := flag.String("provider", "gemini", "Provider the key belongs to")
	dailyLimit := flag.Int("daily-limit", apikey.DefaultDailyLimit, "Daily request budget")
	cipherName := flag.String("cipher", "plaintext", "Secret cipher: plaintext or aesgcm")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	secret := os.Getenv("PROVIDER_API_KEY")
	if secret == "" {
		log.Fatal("PROVIDER_API_KEY environment variable is required")
	}
	if *nickname == "" {
		log.Fatal("-nickname flag is required")
	}
	if *dailyLimit <= 0 {
		log.Fatal("-daily-limit must be positive")
	}

	cipher, err := secrets.FromConfig(*cipherName, os.Getenv("SECRETS_AES_KEY"))
	if err != nil {
		log.Fatalf("Failed to build secrets cipher: %v", err)
	}

	appLogger, err := logger.NewZapLogger("info")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	sealed, err := cipher.Encrypt(secret)
	if err != nil {
		log.Fatalf("Failed to seal key secret: %v", err)
	}

	repo := apikeyRepoImpl.NewAPIKeyRepository(pool, appLogger)

	now := time.Now().UTC()
	newKey := &apikey.APIKey{
		ID:        uuid.New(),
		Secret:    sealed,
		Nickname:  *nickname,
		Provider:  *provider,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Quota: apikey.Quota{
			DailyLimit: *dailyLimit,
			ResetAt:    apikey.NextResetBoundary(now),
		},
	}

	if err := repo.Create(context.Background(), newKey); err != nil {
		log.Fatalf("Failed to save API key to database: %v", err)
	}

	fmt.Printf("API key %q registered with ID: %s\n", newKey.Nickname, newKey.ID)
}
