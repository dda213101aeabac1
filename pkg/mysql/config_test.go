package mysql

import (
	"testing"
	"time"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", User: "khata", Password: "secret", DBName: "ledger"}.WithDefaults()
	want := "khata:secret@tcp(db:3306)/ledger?charset=utf8mb4&parseTime=True&loc=UTC"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN got=%s want=%s", got, want)
	}
}

func TestConfig_WithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{Port: 3307, MaxOpenConns: 5, ConnMaxLifetime: time.Minute}.WithDefaults()
	if cfg.Port != 3307 || cfg.MaxOpenConns != 5 || cfg.ConnMaxLifetime != time.Minute {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
	if cfg.MaxIdleConns != 10 || cfg.ConnectRetries != 10 {
		t.Fatalf("defaults missing: %+v", cfg)
	}
}
