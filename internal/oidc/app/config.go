package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer         string // Required: issuer claim for tokens, also used in the discovery document
	BootstrapToken string // Optional: token required to perform bootstrap

	Algorithm string // Optional: JWT signing algorithm (RS256, ES256, EdDSA) (default: EdDSA)
	RSABits   int    // Optional: RSA key size for RS256 (default: 4096)
	NumKeys   int    // Optional: number of signing keys to generate (default: 3, min: 1, max: 10)

	CodeKeyHex   string // Optional: hex-encoded 32 byte key for authorization code encryption (default: random per process)
	DatabaseFile string // Optional: path to SQLite database file (default: ./openpass.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	AuthCodeTTL     time.Duration // Optional: authorization code lifetime (default: 10m)
	AccessTokenTTL  time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Optional: refresh token lifetime (default: 7 days)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               os.Getenv("OPENPASS_ISSUER"),
		Algorithm:            getEnvOrDefault("OPENPASS_ALGORITHM", "EdDSA"),
		CodeKeyHex:           os.Getenv("OPENPASS_CODE_KEY"),
		DatabaseFile:         getEnvOrDefault("OPENPASS_DATABASE_FILE", "openpass.db"),
		PepperFile:           getEnvOrDefault("OPENPASS_PEPPER_FILE", "pepper"),
		BootstrapToken:       os.Getenv("BOOTSTRAP_TOKEN"),
		AuthCodeTTL:          getEnvDurationOrDefault("OPENPASS_AUTH_CODE_TTL", 10*time.Minute),
		AccessTokenTTL:       getEnvDurationOrDefault("OPENPASS_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getEnvDurationOrDefault("OPENPASS_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// RSA bits only matter for RS256. Zero falls back to the KeyManager default.
	if rsaBitsStr := os.Getenv("OPENPASS_RSA_BITS"); rsaBitsStr != "" {
		if bits, err := strconv.Atoi(rsaBitsStr); err == nil {
			cfg.RSABits = bits
		}
	}

	if numKeysStr := os.Getenv("OPENPASS_NUM_KEYS"); numKeysStr != "" {
		if numKeys, err := strconv.Atoi(numKeysStr); err == nil {
			cfg.NumKeys = numKeys
		}
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "openpass"
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accept Go duration strings ("1h", "30m", "90s").
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
