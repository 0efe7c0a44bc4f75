package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath = "config/config.yaml"
	envPrefix         = "MICHIBIBLIO"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"required,oneof=mysql sqlite3"`
	Host         string `mapstructure:"host" validate:"required_if=Driver mysql"`
	Port         int    `mapstructure:"port" validate:"required_if=Driver mysql"`
	Username     string `mapstructure:"user" validate:"required_if=Driver mysql"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname" validate:"required_if=Driver mysql"`
	Path         string `mapstructure:"path" validate:"required_if=Driver sqlite3"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr" validate:"required"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`
	Issuer    string `mapstructure:"issuer"`
}

type LibraryConfig struct {
	Timezone        string `mapstructure:"timezone" validate:"required"`
	DefaultLoanDays int    `mapstructure:"default_loan_days" validate:"gte=1,lte=365"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type Config struct {
	Version string         `mapstructure:"version"`
	Mode    string         `mapstructure:"mode" validate:"required,oneof=dev release"`
	Server  ServerConfig   `mapstructure:"server"`
	DB      DatabaseConfig `mapstructure:"database"`
	Auth    AuthConfig     `mapstructure:"auth"`
	Library LibraryConfig  `mapstructure:"library"`
	Log     LogConfig      `mapstructure:"log"`
}

// Location は library.timezone を解決する
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Library.Timezone)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "dev")
	v.SetDefault("mode", "dev")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.path", "data/michibiblio.db")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "michibiblio")
	v.SetDefault("library.timezone", "UTC")
	v.SetDefault("library.default_loan_days", 14)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig: YAML を読み込み MICHIBIBLIO_* の環境変数で上書きする。
// path が空、またはファイルが無い場合は既定値と環境変数のみ。
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("設定値が不正: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("library.timezone が不正: %w", err)
	}
	return &cfg, nil
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	switch Dialect(c.Driver) {
	case MySQL:
		return connectMySQL(c)
	case SQLite:
		return connectSQLite(c)
	default:
		return nil, fmt.Errorf("unsupported driver: %q", c.Driver)
	}
}

func connectMySQL(c DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC&charset=utf8mb4",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(string(MySQL), dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	maxOpen := c.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 80
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// SQLite は BEGIN IMMEDIATE で書き込みTxを直列化する（MySQL の FOR UPDATE 相当）
func connectSQLite(c DatabaseConfig) (*sql.DB, error) {
	if dir := filepath.Dir(c.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate&_journal_mode=WAL", c.Path)
	db, err := sql.Open(string(SQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxOpen := c.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	return db, nil
}
