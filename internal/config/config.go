// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Game      GameConfig      `mapstructure:"game"`
	Bonus     BonusConfig     `mapstructure:"bonus"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds Redis connection configuration.
// Redis keeps per-chat match history, idle-round counters and round sequences.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// GameConfig holds dice-betting round configuration.
type GameConfig struct {
	MinBet             int64   `mapstructure:"min_bet"`
	MaxBet             int64   `mapstructure:"max_bet"`
	BigMultiplier      float64 `mapstructure:"big_multiplier"`
	SmallMultiplier    float64 `mapstructure:"small_multiplier"`
	LuckyMultiplier    float64 `mapstructure:"lucky_multiplier"`
	MinMainForReferral int64   `mapstructure:"min_main_for_referral"`
	ReferralRatio      float64 `mapstructure:"referral_ratio"`
	BettingSeconds     int     `mapstructure:"betting_seconds"`
	BreakSeconds       int     `mapstructure:"break_seconds"`
	IdleLimit          int     `mapstructure:"idle_limit"`
	HistorySize        int     `mapstructure:"history_size"`
	PanelAmounts       []int64 `mapstructure:"panel_amounts"`
}

// BonusConfig holds welcome, referral and daily bonus configuration.
type BonusConfig struct {
	Welcome            int64 `mapstructure:"welcome"`
	ReferralReward     int64 `mapstructure:"referral_reward"`
	ReferredBonus      int64 `mapstructure:"referred_bonus"`
	Daily              int64 `mapstructure:"daily"`
	DailyCooldownHours int   `mapstructure:"daily_cooldown_hours"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Addr returns the Redis host:port address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, REDIS_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "dicebot")
	v.SetDefault("database.name", "dicebot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Game defaults
	v.SetDefault("game.min_bet", 10)
	v.SetDefault("game.max_bet", 10000)
	v.SetDefault("game.big_multiplier", 1.95)
	v.SetDefault("game.small_multiplier", 1.95)
	v.SetDefault("game.lucky_multiplier", 4.5)
	v.SetDefault("game.min_main_for_referral", 100)
	v.SetDefault("game.referral_ratio", 0.5)
	v.SetDefault("game.betting_seconds", 60)
	v.SetDefault("game.break_seconds", 10)
	v.SetDefault("game.idle_limit", 3)
	v.SetDefault("game.history_size", 20)
	v.SetDefault("game.panel_amounts", []int64{100, 500, 1000})

	// Bonus defaults
	v.SetDefault("bonus.welcome", 1000)
	v.SetDefault("bonus.referral_reward", 100)
	v.SetDefault("bonus.referred_bonus", 50)
	v.SetDefault("bonus.daily", 50)
	v.SetDefault("bonus.daily_cooldown_hours", 24)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
