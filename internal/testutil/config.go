package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"regexp"
	"testing"

	"github.com/subosito/gotenv"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/platform/config"
)

// TestConfig holds environment-aware settings for tests.
type TestConfig struct {
	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDatabase string
	PublicKey  string
	PrivateKey string
}

func init() {
	// Load a local .env when present so DB tests pick up credentials.
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path)
			break
		}
	}
}

// LoadTestConfig loads test configuration from the environment with
// local defaults. Keys are generated fresh per run.
func LoadTestConfig(t *testing.T) *TestConfig {
	t.Helper()

	pub, priv := GenerateECDSAKeyPairPEM(t)
	cfg := &TestConfig{
		PGHost:     getEnv("PG_HOST", "127.0.0.1"),
		PGPort:     5432,
		PGUser:     getEnv("PG_USER", "postgres"),
		PGPassword: getEnv("PG_PASSWORD", "postgres"),
		PGDatabase: getEnv("PG_DATABASE", "issue_attachments_test"),
		PublicKey:  pub,
		PrivateKey: priv,
	}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		re := regexp.MustCompile(`postgres://([^:]+):([^@]+)@([^:/]+)(?::\d+)?/([^?]+)`)
		if m := re.FindStringSubmatch(dsn); len(m) == 5 {
			cfg.PGUser = m[1]
			cfg.PGPassword = m[2]
			cfg.PGHost = m[3]
			cfg.PGDatabase = m[4]
		}
	}
	return cfg
}

// PlatformConfig converts the test config into a platform config.
func (c *TestConfig) PlatformConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.LoadFromMap(map[string]string{
		"JWT_PUBLIC_KEY": c.PublicKey,
		"PG_HOST":        c.PGHost,
		"PG_USER":        c.PGUser,
		"PG_PASSWORD":    c.PGPassword,
		"PG_DATABASE":    c.PGDatabase,
		"CACHE_BACKEND":  "memory",
	})
	if err != nil {
		t.Fatalf("failed to build test config: %v", err)
	}
	return cfg
}

// GenerateECDSAKeyPairPEM generates a fresh ES256 key pair in PEM form.
func GenerateECDSAKeyPairPEM(t *testing.T) (publicPEM, privatePEM string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return publicPEM, privatePEM
}

func getEnv(key, defVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defVal
}
