package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	protocolcfg "memelend/config"
	"memelend/crypto"
)

const (
	defaultListen       = ":8645"
	defaultProtocolPath = "protocol.toml"
	defaultSecretEnv    = "LENDINGD_JWT_SECRET"
	defaultIndexDriver  = "sqlite"
)

// Duration accepts Go duration strings in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses values such as "15s" or "2m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime settings for the lending daemon. LedgerAdmin
// exposes the account and balance write routes used on development networks.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	DataDir       string          `yaml:"data_dir"`
	InMemory      bool            `yaml:"in_memory"`
	ProtocolPath  string          `yaml:"protocol"`
	LedgerAdmin   bool            `yaml:"ledger_admin"`
	Origins       []string        `yaml:"allowed_origins"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Index         IndexConfig     `yaml:"index"`
	Keeper        KeeperConfig    `yaml:"keeper"`
	Log           LogConfig       `yaml:"log"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Bootstrap     BootstrapConfig `yaml:"bootstrap"`
}

// AuthConfig selects the HMAC secret used to verify bearer tokens.
type AuthConfig struct {
	Secret    string `yaml:"jwt_secret"`
	SecretEnv string `yaml:"jwt_secret_env"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// IndexConfig points the event index at sqlite or postgres.
type IndexConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// KeeperConfig drives the liquidation scanner. With AutoLiquidate set the
// daemon liquidates candidates itself as the bootstrap liquidator.
type KeeperConfig struct {
	Disabled      bool     `yaml:"disabled"`
	Interval      Duration `yaml:"interval"`
	AutoLiquidate bool     `yaml:"auto_liquidate"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig enables the OTLP exporters. Environment variables
// override the endpoint and headers.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Metrics     bool    `yaml:"metrics"`
	Traces      bool    `yaml:"traces"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// BootstrapConfig initialises the protocol singletons on first start.
type BootstrapConfig struct {
	Admin            string `yaml:"admin"`
	OperationsWallet string `yaml:"operations_wallet"`
	BuybackWallet    string `yaml:"buyback_wallet"`
	TreasuryWallet   string `yaml:"treasury_wallet"`
	Liquidator       string `yaml:"liquidator"`
	PriceAuthority   string `yaml:"price_authority"`
	StakingMint      string `yaml:"staking_mint"`
}

// Enabled reports whether any bootstrap address is configured.
func (b BootstrapConfig) Enabled() bool {
	return b.Admin != ""
}

// Addresses parses the bootstrap section. Empty wallets default to the admin.
func (b BootstrapConfig) Addresses() (protocolcfg.Bootstrap, error) {
	var out protocolcfg.Bootstrap
	admin, err := crypto.ParseAddress(b.Admin)
	if err != nil {
		return out, fmt.Errorf("bootstrap.admin: %w", err)
	}
	out.Admin = admin
	fields := []struct {
		name string
		raw  string
		dst  *crypto.Address
	}{
		{"operations_wallet", b.OperationsWallet, &out.OperationsWallet},
		{"buyback_wallet", b.BuybackWallet, &out.BuybackWallet},
		{"treasury_wallet", b.TreasuryWallet, &out.TreasuryWallet},
		{"liquidator", b.Liquidator, &out.Liquidator},
		{"price_authority", b.PriceAuthority, &out.PriceAuthority},
	}
	for _, f := range fields {
		if f.raw == "" {
			*f.dst = admin
			continue
		}
		addr, err := crypto.ParseAddress(f.raw)
		if err != nil {
			return out, fmt.Errorf("bootstrap.%s: %w", f.name, err)
		}
		*f.dst = addr
	}
	mint, err := crypto.ParseAddress(b.StakingMint)
	if err != nil {
		return out, fmt.Errorf("bootstrap.staking_mint: %w", err)
	}
	out.StakingMint = mint
	return out, nil
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// JWTSecret resolves the signing secret, preferring the environment.
func (cfg Config) JWTSecret() []byte {
	if cfg.Auth.SecretEnv != "" {
		if v := strings.TrimSpace(os.Getenv(cfg.Auth.SecretEnv)); v != "" {
			return []byte(v)
		}
	}
	return []byte(cfg.Auth.Secret)
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	cfg.ProtocolPath = strings.TrimSpace(cfg.ProtocolPath)
	if cfg.ProtocolPath == "" {
		cfg.ProtocolPath = defaultProtocolPath
	}
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.Auth.SecretEnv = strings.TrimSpace(cfg.Auth.SecretEnv)
	if cfg.Auth.SecretEnv == "" {
		cfg.Auth.SecretEnv = defaultSecretEnv
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 60
	}
	cfg.Index.Driver = strings.ToLower(strings.TrimSpace(cfg.Index.Driver))
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = defaultIndexDriver
	}
	cfg.Index.DSN = strings.TrimSpace(cfg.Index.DSN)
	if cfg.Keeper.Interval.Duration <= 0 {
		cfg.Keeper.Interval.Duration = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	b := &cfg.Bootstrap
	for _, field := range []*string{&b.Admin, &b.OperationsWallet, &b.BuybackWallet, &b.TreasuryWallet, &b.Liquidator, &b.PriceAuthority, &b.StakingMint} {
		*field = strings.TrimSpace(*field)
	}
}

func (cfg Config) validate() error {
	if !cfg.InMemory && cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required unless in_memory=true")
	}
	if len(cfg.JWTSecret()) < 32 {
		return fmt.Errorf("auth: jwt secret must be at least 32 bytes (set %s or auth.jwt_secret)", cfg.Auth.SecretEnv)
	}
	switch cfg.Index.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Index.DSN == "" {
			return fmt.Errorf("index: postgres requires a dsn")
		}
	default:
		return fmt.Errorf("index: unsupported driver %q", cfg.Index.Driver)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0, 1]")
	}
	if cfg.Bootstrap.Enabled() {
		if _, err := cfg.Bootstrap.Addresses(); err != nil {
			return err
		}
	} else if cfg.Keeper.AutoLiquidate {
		return fmt.Errorf("keeper: auto_liquidate needs bootstrap.liquidator")
	}
	return nil
}
