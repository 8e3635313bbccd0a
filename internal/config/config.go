/**
 * @description
 * This package handles the configuration management for the SUP ledger. It uses
 * Viper to read configuration from environment variables and an optional .env
 * file, providing defaults for every threshold and cron schedule.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all the configuration variables for the ledger service.
type Config struct {
	ServerPort             string  `mapstructure:"SERVER_PORT"`
	DatabaseURL            string  `mapstructure:"DATABASE_URL"`
	StoreDriver            string  `mapstructure:"STORE_DRIVER"`
	RunMigrations          bool    `mapstructure:"RUN_MIGRATIONS"`
	RedisURL               string  `mapstructure:"REDIS_URL"`
	RedisKeyPrefix         string  `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL            string  `mapstructure:"RABBITMQ_URL"`
	EventsExchange         string  `mapstructure:"EVENTS_EXCHANGE"`
	PayoutEventQueue       string  `mapstructure:"PAYOUT_EVENT_QUEUE"`
	KYCServiceURL          string  `mapstructure:"KYC_SERVICE_URL"`
	PayoutGatewayURL       string  `mapstructure:"PAYOUT_GATEWAY_URL"`
	PayoutGatewayAPIKey    string  `mapstructure:"PAYOUT_GATEWAY_API_KEY"`
	InternalAPIKey         string  `mapstructure:"INTERNAL_API_KEY"`
	JWTSecret              string  `mapstructure:"JWT_SECRET"`
	CORSAllowedOrigins     string  `mapstructure:"CORS_ALLOWED_ORIGINS"`
	HTTPRateLimitPerSecond float64 `mapstructure:"HTTP_RATE_LIMIT_PER_SECOND"`
	LargeWithdrawalNGN     string  `mapstructure:"LARGE_WITHDRAWAL_NGN"`
	VelocityPerMinute      int     `mapstructure:"VELOCITY_PER_MINUTE"`
	AlertCooldownMinutes   int     `mapstructure:"ALERT_COOLDOWN_MINUTES"`
	PayoutTimeoutMinutes   int     `mapstructure:"PAYOUT_TIMEOUT_MINUTES"`
	DrawJobSchedule        string  `mapstructure:"DRAW_JOB_SCHEDULE"`
	PayoutExpirySchedule   string  `mapstructure:"PAYOUT_EXPIRY_SCHEDULE"`
	TreasuryHealthSchedule string  `mapstructure:"TREASURY_HEALTH_SCHEDULE"`
	LedgerAuditSchedule    string  `mapstructure:"LEDGER_AUDIT_SCHEDULE"`
	LogFormat              string  `mapstructure:"LOG_FORMAT"`
}

var keys = []string{
	"SERVER_PORT",
	"DATABASE_URL",
	"STORE_DRIVER",
	"RUN_MIGRATIONS",
	"REDIS_URL",
	"REDIS_KEY_PREFIX",
	"RABBITMQ_URL",
	"EVENTS_EXCHANGE",
	"PAYOUT_EVENT_QUEUE",
	"KYC_SERVICE_URL",
	"PAYOUT_GATEWAY_URL",
	"PAYOUT_GATEWAY_API_KEY",
	"INTERNAL_API_KEY",
	"JWT_SECRET",
	"CORS_ALLOWED_ORIGINS",
	"HTTP_RATE_LIMIT_PER_SECOND",
	"LARGE_WITHDRAWAL_NGN",
	"VELOCITY_PER_MINUTE",
	"ALERT_COOLDOWN_MINUTES",
	"PAYOUT_TIMEOUT_MINUTES",
	"DRAW_JOB_SCHEDULE",
	"PAYOUT_EXPIRY_SCHEDULE",
	"TREASURY_HEALTH_SCHEDULE",
	"LEDGER_AUDIT_SCHEDULE",
	"LOG_FORMAT",
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("REDIS_KEY_PREFIX", "sup:velocity")
	viper.SetDefault("EVENTS_EXCHANGE", "sup.events")
	viper.SetDefault("PAYOUT_EVENT_QUEUE", "sup_ledger.payout_updates")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("HTTP_RATE_LIMIT_PER_SECOND", 20.0)
	viper.SetDefault("LARGE_WITHDRAWAL_NGN", "100000")
	viper.SetDefault("VELOCITY_PER_MINUTE", 10)
	viper.SetDefault("ALERT_COOLDOWN_MINUTES", 15)
	viper.SetDefault("PAYOUT_TIMEOUT_MINUTES", 30)
	viper.SetDefault("DRAW_JOB_SCHEDULE", "@every 1m")
	viper.SetDefault("PAYOUT_EXPIRY_SCHEDULE", "@every 5m")
	viper.SetDefault("TREASURY_HEALTH_SCHEDULE", "@every 10m")
	viper.SetDefault("LEDGER_AUDIT_SCHEDULE", "0 3 * * *") // At 03:00 every day.
	viper.SetDefault("LOG_FORMAT", "json")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("PORT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.StoreDriver = strings.ToLower(strings.TrimSpace(config.StoreDriver))
	switch config.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		log.Printf("level=warn component=config msg=\"unknown STORE_DRIVER; using postgres\" value=%q", config.StoreDriver)
		config.StoreDriver = StoreDriverPostgres
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSpace(config.RedisKeyPrefix)
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "sup:velocity"
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.JWTSecret = strings.TrimSpace(config.JWTSecret)

	if _, parseErr := decimal.NewFromString(strings.TrimSpace(config.LargeWithdrawalNGN)); parseErr != nil {
		log.Printf("level=warn component=config msg=\"invalid LARGE_WITHDRAWAL_NGN; using default\" value=%q err=%v", config.LargeWithdrawalNGN, parseErr)
		config.LargeWithdrawalNGN = "100000"
	}
	if config.VelocityPerMinute <= 0 {
		log.Printf("level=warn component=config msg=\"invalid VELOCITY_PER_MINUTE; using default\" value=%d", config.VelocityPerMinute)
		config.VelocityPerMinute = 10
	}
	if config.AlertCooldownMinutes <= 0 {
		log.Printf("level=warn component=config msg=\"invalid ALERT_COOLDOWN_MINUTES; using default\" value=%d", config.AlertCooldownMinutes)
		config.AlertCooldownMinutes = 15
	}
	if config.PayoutTimeoutMinutes <= 0 {
		log.Printf("level=warn component=config msg=\"invalid PAYOUT_TIMEOUT_MINUTES; using default\" value=%d", config.PayoutTimeoutMinutes)
		config.PayoutTimeoutMinutes = 30
	}
	if config.HTTPRateLimitPerSecond < 0 {
		log.Printf("level=warn component=config msg=\"invalid HTTP_RATE_LIMIT_PER_SECOND; disabling\" value=%v", config.HTTPRateLimitPerSecond)
		config.HTTPRateLimitPerSecond = 0
	}

	if config.StoreDriver == StoreDriverPostgres && strings.TrimSpace(config.DatabaseURL) == "" {
		return config, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
	}
	if config.JWTSecret == "" {
		return config, fmt.Errorf("JWT_SECRET is required")
	}
	if config.InternalAPIKey == "" {
		return config, fmt.Errorf("INTERNAL_API_KEY is required")
	}

	return config, nil
}

// LargeWithdrawal returns LARGE_WITHDRAWAL_NGN as a decimal.
func (c Config) LargeWithdrawal() decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(c.LargeWithdrawalNGN))
	if err != nil {
		return decimal.NewFromInt(100_000)
	}
	return v
}

// AlertCooldown returns the de-duplication window.
func (c Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownMinutes) * time.Minute
}

// PayoutTimeout returns the age after which a PENDING cashout is reversed.
func (c Config) PayoutTimeout() time.Duration {
	return time.Duration(c.PayoutTimeoutMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
