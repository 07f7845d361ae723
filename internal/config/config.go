package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr  string
	LedgerDir string

	ActorDID     string
	DIDWebDomain string
	OIDCToken    string
	ActorKeyPath string

	TFVersion    string
	PeersFile    string
	PolicyBundle string

	PostgresDSN string

	RateLimitRequests      int
	RateLimitWindowSeconds int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PeerTimeoutSeconds int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		LedgerDir:              os.Getenv("VAULTMESH_LEDGER_DIR"),
		ActorDID:               os.Getenv("VM_ACTOR_DID"),
		DIDWebDomain:           os.Getenv("VM_DID_WEB_DOMAIN"),
		OIDCToken:              os.Getenv("VM_OIDC_JWT"),
		ActorKeyPath:           os.Getenv("VM_ACTOR_KEY_PATH"),
		TFVersion:              os.Getenv("VM_TF_VERSION"),
		PeersFile:              os.Getenv("VM_PEERS_TOML"),
		PolicyBundle:           os.Getenv("VM_POLICY_BUNDLE"),
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		PeerTimeoutSeconds:     envIntDefault("PEER_TIMEOUT_SECONDS", 15),
	}
}

// ResolveLedgerDir returns the configured ledger directory, defaulting to
// ~/.vaultmesh/ledger.
func (c Config) ResolveLedgerDir() (string, error) {
	if c.LedgerDir != "" {
		return c.LedgerDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vaultmesh", "ledger"), nil
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) PeerTimeout() time.Duration {
	if c.PeerTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.PeerTimeoutSeconds) * time.Second
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
