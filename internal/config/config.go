// Package config 載入服務設定 (YAML + 環境變數展開)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/out/reminder"
	"github.com/JoeShih716/go-khata-ledger/pkg/mysql"
	"github.com/JoeShih716/go-khata-ledger/pkg/postgres"
	"github.com/JoeShih716/go-khata-ledger/pkg/redis"
)

// EnvPath 設定檔路徑的環境變數
const EnvPath = "KHATA_CONFIG"

// DefaultPath 沒有指定時的設定檔路徑
const DefaultPath = "config/config.yaml"

// LedgerDriver 帳本儲存實作
type LedgerDriver string

const (
	DriverMemory   LedgerDriver = "memory"
	DriverMySQL    LedgerDriver = "mysql"
	DriverPostgres LedgerDriver = "postgres"
)

// CodeStoreDriver 驗證碼儲存實作
type CodeStoreDriver string

const (
	CodeStoreMemory CodeStoreDriver = "memory"
	CodeStoreRedis  CodeStoreDriver = "redis"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Ledger   LedgerConfig    `yaml:"ledger"`
	MySQL    mysql.Config    `yaml:"mysql"`
	Postgres postgres.Config `yaml:"postgres"`
	Redis    redis.Config    `yaml:"redis"`
	Auth     AuthConfig      `yaml:"auth"`
	Reminder ReminderConfig  `yaml:"reminder"`
}

type ServerConfig struct {
	GRPCAddr        string        `yaml:"grpc_addr"`
	HTTPAddr        string        `yaml:"http_addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Verbose: 每個請求都寫 log
	Verbose bool `yaml:"verbose"`
}

type LedgerConfig struct {
	Driver LedgerDriver `yaml:"driver"`
	// WALPath: memory driver 的 WAL 檔；空字串表示不持久化
	WALPath      string        `yaml:"wal_path"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// Migrate: 啟動時建立資料表
	Migrate bool `yaml:"migrate"`
}

type AuthConfig struct {
	Tokens    auth.TokenConfig `yaml:"tokens"`
	OTP       auth.OTPConfig   `yaml:"otp"`
	CodeStore CodeStoreDriver  `yaml:"code_store"`
}

type ReminderConfig struct {
	BusinessName string                `yaml:"business_name"`
	Timeout      time.Duration         `yaml:"timeout"`
	Gemini       reminder.GeminiConfig `yaml:"gemini"`
}

// Path 決定設定檔路徑：flag > 環境變數 > 預設
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load 讀取設定檔，展開 ${VAR} 後解析並補上預設值
//
// 參數:
//
//	path: 設定檔路徑
//
// 回傳:
//
//	Config: 補完預設值的設定
//	error: 讀檔、解析或驗證失敗
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析設定內容
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":50051"
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = DriverMemory
	}
	if c.Auth.CodeStore == "" {
		c.Auth.CodeStore = CodeStoreMemory
	}
	c.MySQL = c.MySQL.WithDefaults()
	c.Postgres = c.Postgres.WithDefaults()
}

// Validate 檢查彼此相依的設定
func (c *Config) Validate() error {
	var errs []string
	switch c.Ledger.Driver {
	case DriverMemory:
	case DriverMySQL:
		if c.MySQL.Host == "" || c.MySQL.DBName == "" {
			errs = append(errs, "mysql.host and mysql.dbname are required for the mysql driver")
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, "postgres.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown ledger.driver %q", c.Ledger.Driver))
	}
	switch c.Auth.CodeStore {
	case CodeStoreMemory:
	case CodeStoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis code store")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown auth.code_store %q", c.Auth.CodeStore))
	}
	if len(c.Auth.Tokens.Secret) < 16 {
		errs = append(errs, "auth.tokens.secret must be at least 16 bytes")
	}
	if len(errs) > 0 {
		return errors.New("invalid config: " + strings.Join(errs, "; "))
	}
	return nil
}
