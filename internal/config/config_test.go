package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_DefaultsAndEnv(t *testing.T) {
	t.Setenv("TEST_KHATA_SECRET", "env-secret-0123456789")
	cfg, err := Parse([]byte(`
auth:
  tokens:
    secret: ${TEST_KHATA_SECRET}
reminder:
  timeout: 5s
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Auth.Tokens.Secret != "env-secret-0123456789" {
		t.Fatalf("secret should come from env, got=%q", cfg.Auth.Tokens.Secret)
	}
	if cfg.Ledger.Driver != DriverMemory || cfg.Auth.CodeStore != CodeStoreMemory {
		t.Fatalf("drivers got=%s/%s", cfg.Ledger.Driver, cfg.Auth.CodeStore)
	}
	if cfg.Server.GRPCAddr != ":50051" || cfg.Server.HTTPAddr != ":8080" || cfg.Server.RequestTimeout != 10*time.Second {
		t.Fatalf("server defaults got=%+v", cfg.Server)
	}
	if cfg.Reminder.Timeout != 5*time.Second {
		t.Fatalf("duration got=%v", cfg.Reminder.Timeout)
	}
	if cfg.MySQL.Port != 3306 || cfg.Postgres.MaxConns != 20 {
		t.Fatalf("store defaults not applied: mysql=%+v postgres=%+v", cfg.MySQL, cfg.Postgres)
	}
}

func TestParse_Validation(t *testing.T) {
	cases := []struct {
		name, yaml, want string
	}{
		{"short secret", "auth: {tokens: {secret: short}}", "secret"},
		{"unknown driver", "ledger: {driver: sqlite}\nauth: {tokens: {secret: 0123456789abcdef}}", "ledger.driver"},
		{"mysql without host", "ledger: {driver: mysql}\nauth: {tokens: {secret: 0123456789abcdef}}", "mysql.host"},
		{"postgres without dsn", "ledger: {driver: postgres}\nauth: {tokens: {secret: 0123456789abcdef}}", "postgres.dsn"},
		{"redis without addr", "auth: {code_store: redis, tokens: {secret: 0123456789abcdef}}", "redis.addr"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err got=%v want mention of %q", err, c.want)
			}
		})
	}
}

func TestLoad_RepositoryConfig(t *testing.T) {
	t.Setenv("KHATA_TOKEN_SECRET", "repo-config-secret-0123")
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ledger.WALPath == "" || cfg.Auth.OTP.TTL != 5*time.Minute {
		t.Fatalf("config got=%+v", cfg)
	}
}

func TestPath(t *testing.T) {
	t.Setenv(EnvPath, "")
	if got := Path(""); got != DefaultPath {
		t.Fatalf("default got=%s", got)
	}
	t.Setenv(EnvPath, "/etc/khata.yaml")
	if got := Path(""); got != "/etc/khata.yaml" {
		t.Fatalf("env got=%s", got)
	}
	if got := Path("custom.yaml"); got != "custom.yaml" {
		t.Fatalf("flag got=%s", got)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file err=%v", err)
	}
}

