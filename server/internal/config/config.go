package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"SeedCrypt/server/internal/pkg/encryption"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Keyring  KeyringConfig
	Cipher   CipherConfig
	LogDebug bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// KeyringConfig holds the hex-encoded master key that wraps stored keys
type KeyringConfig struct {
	MasterKeyHex string
}

// CipherConfig holds the default SEED parameters for new keys and requests
type CipherConfig struct {
	Mode                         string
	Padding                      string
	FeedbackSize                 int
	ValidateKeyAgainstBlockSizes bool
	SegmentedFeedback            bool
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "seedcrypt"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		Keyring: KeyringConfig{
			MasterKeyHex: getEnv("KEYRING_MASTER_KEY", ""),
		},
		Cipher: CipherConfig{
			Mode:                         getEnv("SEED_MODE", "CBC"),
			Padding:                      getEnv("SEED_PADDING", "PKCS7"),
			FeedbackSize:                 getEnvInt("SEED_FEEDBACK_SIZE", 8),
			ValidateKeyAgainstBlockSizes: getEnvBool("SEED_VALIDATE_KEY_AGAINST_BLOCK_SIZES", true),
			SegmentedFeedback:            getEnvBool("SEED_SEGMENTED_FEEDBACK", false),
		},
		LogDebug: getEnvBool("LOG_DEBUG", false),
	}
}

// MasterKey decodes the keyring master key, which must be one SEED key long
func (c *Config) MasterKey() ([]byte, error) {
	if c.Keyring.MasterKeyHex == "" {
		return nil, fmt.Errorf("KEYRING_MASTER_KEY is not set")
	}
	key, err := hex.DecodeString(c.Keyring.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("KEYRING_MASTER_KEY: %w", err)
	}
	if len(key) != encryption.SeedKeySize {
		return nil, fmt.Errorf("KEYRING_MASTER_KEY must be %d bytes, got %d", encryption.SeedKeySize, len(key))
	}
	return key, nil
}

// SeedDefaults builds the base SEED configuration from the cipher settings
func (c *Config) SeedDefaults() (encryption.Seed, error) {
	s := encryption.Create().
		WithKeyValidation(c.Cipher.ValidateKeyAgainstBlockSizes).
		WithSegmentedFeedback(c.Cipher.SegmentedFeedback)

	mode, err := encryption.ParseCipherMode(c.Cipher.Mode)
	if err != nil {
		return s, fmt.Errorf("SEED_MODE: %w", err)
	}
	if s, err = s.WithMode(mode); err != nil {
		return s, fmt.Errorf("SEED_MODE: %w", err)
	}

	padding, err := encryption.ParsePaddingMode(c.Cipher.Padding)
	if err != nil {
		return s, fmt.Errorf("SEED_PADDING: %w", err)
	}
	s = s.WithPadding(padding)

	if s, err = s.WithFeedbackSize(c.Cipher.FeedbackSize); err != nil {
		return s, fmt.Errorf("SEED_FEEDBACK_SIZE: %w", err)
	}

	return s, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// String returns a string representation of the config
func (c *Config) String() string {
	masterKey := "unset"
	if c.Keyring.MasterKeyHex != "" {
		masterKey = "***"
	}
	return fmt.Sprintf(`
Server: %s:%d
Database: postgres://%s@%s:%d/%s
JWT Secret: ***
Keyring Master Key: %s
Cipher: %s/%s feedback=%d segmented=%t validate-against-block-sizes=%t
Debug: %t`,
		c.Server.Host, c.Server.Port,
		c.Database.User, c.Database.Host, c.Database.Port, c.Database.Database,
		masterKey,
		c.Cipher.Mode, c.Cipher.Padding, c.Cipher.FeedbackSize, c.Cipher.SegmentedFeedback, c.Cipher.ValidateKeyAgainstBlockSizes,
		c.LogDebug,
	)
}
