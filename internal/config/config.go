// Package config loads server configuration from YAML with environment
// overrides. A .env file, when present, is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/settlement"
	"github.com/MJE43/pf-slots/internal/slots"
)

// Seed store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Seeds      SeedsConfig      `yaml:"seeds"`
	Auth       AuthConfig       `yaml:"auth"`
	Settlement SettlementConfig `yaml:"settlement"`
	Game       GameConfig       `yaml:"game"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ScanTimeout  time.Duration `yaml:"scan_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SeedsConfig struct {
	Driver   string         `yaml:"driver"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
	// SigningKey overrides the keychain-held key. Prefer the keychain.
	SigningKey     string `yaml:"signing_key"`
	SecretService  string `yaml:"secret_service"`
	SecretFallback string `yaml:"secret_fallback"`
}

type SettlementConfig struct {
	Mode     string `yaml:"mode"`
	Endpoint string `yaml:"endpoint"`
	Method   string `yaml:"method"`
}

// GameConfig is the paytable. Empty sections fall back to the stock game.
type GameConfig struct {
	Hash              string          `yaml:"hash"`
	MinBet            string          `yaml:"min_bet"`
	MaxBet            string          `yaml:"max_bet"`
	JackpotSymbol     string          `yaml:"jackpot_symbol"`
	JackpotMultiplier int64           `yaml:"jackpot_multiplier"`
	Symbols           []slots.Symbol  `yaml:"symbols"`
	Paylines          []slots.Payline `yaml:"paylines"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			ScanTimeout:  30 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/slots.db"},
		Seeds: SeedsConfig{
			Driver: DriverSQLite,
			Redis:  RedisConfig{Addr: "localhost:6379"},
		},
		Auth: AuthConfig{
			TokenTTL:      24 * time.Hour,
			SecretService: "pf-slots",
		},
		Settlement: SettlementConfig{Mode: settlement.ModeSimulated},
	}
}

// LoadEnv loads .env style files into the process environment. Missing files
// are skipped; variables already set win.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path over the defaults (an empty path skips the file), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "SLOTS_ADDR")
	setString(&c.Database.Path, "SLOTS_DB_PATH")
	setString(&c.Seeds.Driver, "SLOTS_SEEDS_DRIVER")
	setString(&c.Seeds.Redis.Addr, "REDIS_ADDR")
	setString(&c.Seeds.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Seeds.Postgres.DSN, "PG_DSN")
	setString(&c.Auth.SigningKey, "SLOTS_JWT_SECRET")
	setString(&c.Auth.SecretFallback, "SLOTS_SECRET_FALLBACK")
	setString(&c.Settlement.Mode, "SETTLEMENT_MODE")
	setString(&c.Settlement.Endpoint, "SETTLEMENT_ENDPOINT")

	if v := os.Getenv("SLOTS_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		c.Seeds.Redis.DB = n
	}
	if v := os.Getenv("SLOTS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: SLOTS_TOKEN_TTL: %w", err)
		}
		c.Auth.TokenTTL = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the parts that are not validated by their consumers.
func (c *Config) Validate() error {
	switch c.Seeds.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Seeds.Redis.Addr == "" {
			return fmt.Errorf("config: seeds.redis.addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Seeds.Postgres.DSN == "" {
			return fmt.Errorf("config: seeds.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown seeds driver %q", c.Seeds.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if _, err := c.Game.NewGame(); err != nil {
		return err
	}
	return nil
}

// SlotsConfig converts the paytable into a game configuration.
func (g GameConfig) SlotsConfig() (slots.Config, error) {
	cfg := slots.DefaultConfig()

	hasher, err := engine.HasherByName(g.Hash)
	if err != nil {
		return slots.Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.Hasher = hasher

	if g.MinBet != "" {
		if cfg.Rules.MinBet, err = decimal.NewFromString(g.MinBet); err != nil {
			return slots.Config{}, fmt.Errorf("config: game.min_bet: %w", err)
		}
	}
	if g.MaxBet != "" {
		if cfg.Rules.MaxBet, err = decimal.NewFromString(g.MaxBet); err != nil {
			return slots.Config{}, fmt.Errorf("config: game.max_bet: %w", err)
		}
	}
	if g.JackpotSymbol != "" {
		cfg.Rules.JackpotSymbol = g.JackpotSymbol
	}
	if g.JackpotMultiplier != 0 {
		cfg.Rules.JackpotMultiplier = g.JackpotMultiplier
	}
	if len(g.Symbols) > 0 {
		cfg.Symbols = g.Symbols
	}
	if len(g.Paylines) > 0 {
		cfg.Paylines = slots.ActivePaylines(g.Paylines)
	}
	return cfg, nil
}

// NewGame builds the configured slot game.
func (g GameConfig) NewGame() (*slots.Game, error) {
	cfg, err := g.SlotsConfig()
	if err != nil {
		return nil, err
	}
	return slots.NewGame(cfg)
}
