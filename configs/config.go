package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Port               string
	DashboardPort      string
	Environment        string
	APIKey             string
	ModelPath          string
	TrainCSVPath       string
	PredictorURL       string
	HTTPTimeoutSeconds int
	ResultsCSVPath     string
	DatabaseURL        string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		DashboardPort:      getEnv("DASHBOARD_PORT", "8501"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		APIKey:             getEnv("API_KEY", ""),
		ModelPath:          getEnv("MODEL_PATH", "data/sticker_sales_v1.json"),
		TrainCSVPath:       getEnv("TRAIN_CSV_PATH", "data/train.csv"),
		PredictorURL:       getEnv("PREDICTOR_URL", "http://localhost:3000"),
		HTTPTimeoutSeconds: getEnvInt("HTTP_TIMEOUT_SECONDS", 90),
		ResultsCSVPath:     getEnv("RESULTS_CSV_PATH", "predictions_results.csv"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
