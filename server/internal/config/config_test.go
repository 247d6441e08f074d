package config

import (
	"strings"
	"testing"

	"SeedCrypt/server/internal/pkg/encryption"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "SEED_MODE", "SEED_PADDING", "SEED_FEEDBACK_SIZE", "SEED_VALIDATE_KEY_AGAINST_BLOCK_SIZES", "SEED_SEGMENTED_FEEDBACK", "LOG_DEBUG"} {
		t.Setenv(key, "")
	}
	// t.Setenv cannot unset; empty values fall through to the parse defaults
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Cipher.FeedbackSize != 8 || !cfg.Cipher.ValidateKeyAgainstBlockSizes || cfg.Cipher.SegmentedFeedback || cfg.LogDebug {
		t.Fatalf("unexpected cipher defaults %+v debug=%v", cfg.Cipher, cfg.LogDebug)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9443")
	t.Setenv("SEED_MODE", "ofb")
	t.Setenv("SEED_PADDING", "none")
	t.Setenv("SEED_FEEDBACK_SIZE", "128")
	t.Setenv("SEED_VALIDATE_KEY_AGAINST_BLOCK_SIZES", "false")
	t.Setenv("SEED_SEGMENTED_FEEDBACK", "true")
	t.Setenv("LOG_DEBUG", "1")

	cfg := Load()
	if cfg.Server.Port != 9443 || !cfg.LogDebug || cfg.Cipher.ValidateKeyAgainstBlockSizes {
		t.Fatalf("environment not applied: %+v", cfg)
	}

	s, err := cfg.SeedDefaults()
	if err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}
	if s.Mode() != encryption.ModeOFB || s.Padding() != encryption.PaddingNone || s.FeedbackSize() != 128 {
		t.Fatalf("unexpected defaults %s/%s/%d", s.Mode(), s.Padding(), s.FeedbackSize())
	}
	if s.ValidatesKeyAgainstBlockSizes() {
		t.Fatalf("key validation policy not applied")
	}
	if !s.SegmentedFeedback() {
		t.Fatalf("segmented feedback not applied")
	}
}

func TestSeedDefaultsRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		cipher CipherConfig
		want   string
	}{
		{"mode", CipherConfig{Mode: "CTR", Padding: "PKCS7", FeedbackSize: 8}, "SEED_MODE"},
		{"cts", CipherConfig{Mode: "CTS", Padding: "PKCS7", FeedbackSize: 8}, "SEED_MODE"},
		{"padding", CipherConfig{Mode: "CBC", Padding: "PKCS5", FeedbackSize: 8}, "SEED_PADDING"},
		{"feedback", CipherConfig{Mode: "CFB", Padding: "NONE", FeedbackSize: 12}, "SEED_FEEDBACK_SIZE"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Cipher: tc.cipher}
			if _, err := cfg.SeedDefaults(); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %s error, got %v", tc.want, err)
			}
		})
	}
}

func TestMasterKey(t *testing.T) {
	cfg := &Config{Keyring: KeyringConfig{MasterKeyHex: "000102030405060708090a0b0c0d0e0f"}}
	key, err := cfg.MasterKey()
	if err != nil || len(key) != 16 || key[15] != 0x0f {
		t.Fatalf("unexpected master key %x, %v", key, err)
	}

	for _, bad := range []string{"", "zz", "0001"} {
		cfg.Keyring.MasterKeyHex = bad
		if _, err := cfg.MasterKey(); err == nil {
			t.Fatalf("master key %q accepted", bad)
		}
	}
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := &Config{
		JWT:     JWTConfig{Secret: "top-secret"},
		Keyring: KeyringConfig{MasterKeyHex: "000102030405060708090a0b0c0d0e0f"},
	}
	out := cfg.String()
	if strings.Contains(out, "top-secret") || strings.Contains(out, "000102") {
		t.Fatalf("secrets leaked: %s", out)
	}
}
