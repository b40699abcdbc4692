package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Quotes   Quotes   `mapstructure:"quotes"`
	Trading  Trading  `mapstructure:"trading"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Auth     Auth     `mapstructure:"auth"`
}

// Quotes holds the configuration for the market quote source.
type Quotes struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiKey         string  `mapstructure:"api_key"`
	Convert        string  `mapstructure:"convert"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Timeout returns the bounded per-request timeout for quote calls.
func (q Quotes) Timeout() time.Duration {
	return time.Duration(q.TimeoutSeconds) * time.Second
}

// Trading holds the configuration for the wallet ledger.
type Trading struct {
	FiatSymbol  string  `mapstructure:"fiat_symbol"`
	InitialFiat float64 `mapstructure:"initial_fiat"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds the configuration for the web UI server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Auth holds the credentials seeded for the default user on first start.
type Auth struct {
	DefaultUser     string `mapstructure:"default_user"`
	DefaultPassword string `mapstructure:"default_password"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("quotes.convert", "EUR")
	viper.SetDefault("quotes.rate_limit", 10) // requests per second
	viper.SetDefault("quotes.rate_limit_burst", 5)
	viper.SetDefault("quotes.timeout_seconds", 10)
	viper.SetDefault("trading.fiat_symbol", "EUR")
	viper.SetDefault("trading.initial_fiat", 1000)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
