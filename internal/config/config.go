package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv" // godotenv loads a .env file when present
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The types reflect how the values are used:
// strings for identifiers and secrets, ints for durations and costs,
// int64 cents for money amounts.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBMaxOpenConns int    // connection pool ceiling
	DBMaxIdleConns int    // idle connections kept around
	DBConnLifeMin  int    // max connection lifetime in minutes
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	OwnerEmail    string // email of the platform owner account
	OwnerPassword string // password for the owner account (created when absent)

	FundingThresholdCents int64 // capital an airline must pay in before a voted approval
	MaxPremiumCents       int64 // premium cap; excess is refunded at purchase
	RegistrationFeeCents  int64 // oracle node registration fee
	RequestTTLMin         int   // minutes before an unanswered status request expires (0 disables)
}

// Load reads configuration values from environment variables and returns
// a Config.  A .env file in the working directory is merged in first.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.  Domain parameters fall back
// to the source system's constants.
func Load() Config {
	_ = godotenv.Load() // missing .env is fine; real env vars win

	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnLifeMin:  envInt("DB_CONN_MAX_LIFETIME_MIN", 30),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		OwnerEmail:    must("OWNER_EMAIL"),
		OwnerPassword: must("OWNER_PASSWORD"),

		FundingThresholdCents: envInt64("FUNDING_THRESHOLD_CENTS", 10_000_00),
		MaxPremiumCents:       envInt64("MAX_PREMIUM_CENTS", 1_00_00),
		RegistrationFeeCents:  envInt64("REGISTRATION_FEE_CENTS", 1_00_00),
		RequestTTLMin:         envInt("REQUEST_TTL_MIN", 0),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envInt64 reads an optional int64 variable with a default.
func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
