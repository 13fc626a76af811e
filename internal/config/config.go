package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	JWTSecret string

	PaystackSecretKey string
	ProofServiceURL   string
	ProofServiceKey   string

	// Fee rule applied at shipment creation. Frozen per shipment; changing
	// these values never recomputes already-placed orders.
	PlatformFeeRate      float64
	PlatformFeeFlat      float64
	PlatformFeeThreshold float64
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),

		JWTSecret: os.Getenv("SECRET_KEY"),

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		ProofServiceURL:   os.Getenv("PROOF_SERVICE_URL"),
		ProofServiceKey:   os.Getenv("PROOF_SERVICE_KEY"),

		PlatformFeeRate:      envFloat("PLATFORM_FEE_RATE", 0.025),
		PlatformFeeFlat:      envFloat("PLATFORM_FEE_FLAT", 100),
		PlatformFeeThreshold: envFloat("PLATFORM_FEE_THRESHOLD", 1000),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v", key, raw, def)
		return def
	}
	return v
}
