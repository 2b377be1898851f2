// Package config loads application configuration from environment
// variables. A .env file is loaded by the entry point before Load runs.
package config

import (
	"log"
	"os"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable: strings for identifiers and secrets, the
// M-Pesa block grouped under Mpesa.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name
	Mpesa  MpesaConfig
}

// MpesaConfig carries the Daraja API credentials and endpoints for the
// merchant till. The sandbox short code and passkey are the public
// Safaricom test values; the consumer key and secret have no sane
// default and must always be provided.
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	TillNumber     string
	CallbackURL    string
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:    getenv("APP_ENV", "dev"),
		Port:   getenv("APP_PORT", "8080"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),
		Mpesa: MpesaConfig{
			BaseURL:        getenv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    must("MPESA_CONSUMER_KEY"),
			ConsumerSecret: must("MPESA_CONSUMER_SECRET"),
			ShortCode:      getenv("MPESA_BUSINESS_SHORT_CODE", "174379"),
			Passkey:        getenv("MPESA_PASSKEY", "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919"),
			TillNumber:     getenv("MPESA_TILL_NUMBER", "174379"),
			CallbackURL:    must("MPESA_CALLBACK_URL"),
		},
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the value of an environment variable or a default.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
