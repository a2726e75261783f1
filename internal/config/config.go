// Package config provides configuration management for the arcade server
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the arcade server
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration.
// Driver "memory" keeps every store in process.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig holds the flag store connection. Empty Addr means in-memory flags.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AMQPConfig holds the game event publisher connection. Empty URL disables it.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// DiscordConfig holds the large-win webhook. Empty ID disables it.
type DiscordConfig struct {
	WebhookID    string `mapstructure:"webhook_id"`
	WebhookToken string `mapstructure:"webhook_token"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// BetLimits bounds the stake of a single wager
type BetLimits struct {
	MinBet int64 `mapstructure:"min_bet"`
	MaxBet int64 `mapstructure:"max_bet"`
}

// RouletteConfig holds roulette tuning
type RouletteConfig struct {
	BetLimits  `mapstructure:",squash"`
	ZeroWeight float64 `mapstructure:"zero_weight"`
}

// ChickenConfig holds chicken cross tuning
type ChickenConfig struct {
	BetLimits    `mapstructure:",squash"`
	Base         float64 `mapstructure:"base"`
	SafetyFactor float64 `mapstructure:"safety_factor"`
	Variance     float64 `mapstructure:"variance"`
	MaxSteps     int     `mapstructure:"max_steps"`
}

// CoinflipConfig holds coinflip tuning
type CoinflipConfig struct {
	BetLimits  `mapstructure:",squash"`
	FeePercent int64 `mapstructure:"fee_percent"`
}

// GameConfig holds game-related configuration
type GameConfig struct {
	StartingBalance   int64          `mapstructure:"starting_balance"`
	LargeWinThreshold int64          `mapstructure:"large_win_threshold"`
	Slots             BetLimits      `mapstructure:"slots"`
	Roulette          RouletteConfig `mapstructure:"roulette"`
	Wheel             BetLimits      `mapstructure:"wheel"`
	Chicken           ChickenConfig  `mapstructure:"chicken"`
	Coinflip          CoinflipConfig `mapstructure:"coinflip"`
}

// NotifyConfig sizes the background notification queue
type NotifyConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from an optional file and the environment with defaults.
// Environment keys use the ARCADE_ prefix, e.g. ARCADE_DATABASE_DSN.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("ARCADE_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := new(Config)
	// defaults always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost dbname=arcade sslmode=disable")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "game.events")

	v.SetDefault("discord.webhook_id", "")
	v.SetDefault("discord.webhook_token", "")

	v.SetDefault("auth.jwt_secret", "arcade-dev-secret-change-in-production")
	v.SetDefault("auth.token_expiry", 24*time.Hour)

	v.SetDefault("game.starting_balance", 1000)
	v.SetDefault("game.large_win_threshold", 5000)
	v.SetDefault("game.slots.min_bet", 10)
	v.SetDefault("game.slots.max_bet", 10000)
	v.SetDefault("game.roulette.min_bet", 10)
	v.SetDefault("game.roulette.max_bet", 10000)
	v.SetDefault("game.roulette.zero_weight", 0.10)
	v.SetDefault("game.wheel.min_bet", 10)
	v.SetDefault("game.wheel.max_bet", 10000)
	v.SetDefault("game.chicken.min_bet", 10)
	v.SetDefault("game.chicken.max_bet", 5000)
	v.SetDefault("game.chicken.base", 1.2)
	v.SetDefault("game.chicken.safety_factor", 0.97)
	v.SetDefault("game.chicken.variance", 0.05)
	v.SetDefault("game.chicken.max_steps", 20)
	v.SetDefault("game.coinflip.min_bet", 10)
	v.SetDefault("game.coinflip.max_bet", 50000)
	v.SetDefault("game.coinflip.fee_percent", 0)

	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queue_size", 256)

	v.SetDefault("log.level", "info")
}

// Validate rejects tunings that would break the economic invariants
func (c *Config) Validate() error {
	g := c.Game
	for name, l := range map[string]BetLimits{
		"slots":    g.Slots,
		"roulette": g.Roulette.BetLimits,
		"wheel":    g.Wheel,
		"chicken":  g.Chicken.BetLimits,
		"coinflip": g.Coinflip.BetLimits,
	} {
		if l.MinBet <= 0 || l.MaxBet < l.MinBet {
			return fmt.Errorf("invalid %s bet limits: min=%d max=%d", name, l.MinBet, l.MaxBet)
		}
	}
	if g.Roulette.ZeroWeight < 0 || g.Roulette.ZeroWeight >= 1 {
		return fmt.Errorf("roulette zero weight must be in [0,1): %v", g.Roulette.ZeroWeight)
	}
	if g.Chicken.SafetyFactor <= 0 || g.Chicken.SafetyFactor >= 1 {
		return fmt.Errorf("chicken safety factor must be in (0,1): %v", g.Chicken.SafetyFactor)
	}
	// a survived step must never lower the payout
	if g.Chicken.Base*(1-g.Chicken.Variance) <= 1+g.Chicken.Variance {
		return fmt.Errorf("chicken base %v too small for variance %v", g.Chicken.Base, g.Chicken.Variance)
	}
	if g.Chicken.MaxSteps <= 0 {
		return fmt.Errorf("chicken max steps must be positive")
	}
	if g.Coinflip.FeePercent < 0 || g.Coinflip.FeePercent >= 100 {
		return fmt.Errorf("coinflip fee percent must be in [0,100)")
	}
	if g.StartingBalance < 0 {
		return fmt.Errorf("starting balance must not be negative")
	}
	return nil
}
