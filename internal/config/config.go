package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the API server and CLI.
type Config struct {
	Port            string
	BigQueryProject string
	BigQueryDataset string
	// Store selects the backing store: "bigquery" or "memory".
	Store string
}

// Load reads configuration from the environment, loading a .env file
// first when one is present.
func Load() Config {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	return Config{
		Port:            getEnv("PORT", "8080"),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", ""),
		Store:           getEnv("STORE", "bigquery"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
