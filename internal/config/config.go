// Package config содержит логику чтения конфигурации сервиса HazirHay.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config содержит параметры конфигурации сервиса HazirHay.
type Config struct {
	RunAddress  string `yaml:"run_address" env:"RUN_ADDRESS"`
	DatabaseURI string `yaml:"database_uri" env:"DATABASE_URI"`

	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`

	RedisAddress  string        `yaml:"redis_address" env:"REDIS_ADDRESS"`
	PriceCacheTTL time.Duration `yaml:"price_cache_ttl" env:"PRICE_CACHE_TTL"`

	KafkaBrokers       []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	NotificationTopic  string   `yaml:"notification_topic" env:"NOTIFICATION_TOPIC"`
	PushGatewayAddress string   `yaml:"push_gateway_address" env:"PUSH_GATEWAY_ADDRESS"`

	// RatePerKm хранится строкой, чтобы не терять точность при разборе.
	RatePerKm           string        `yaml:"rate_per_km" env:"RATE_PER_KM"`
	CancelBlockDuration time.Duration `yaml:"cancel_block_duration" env:"CANCEL_BLOCK_DURATION"`
	NotifyTimeout       time.Duration `yaml:"notify_timeout" env:"NOTIFY_TIMEOUT"`
	SnowflakeNode       int64         `yaml:"snowflake_node" env:"SNOWFLAKE_NODE"`

	AdminEmail    string `yaml:"admin_email" env:"ADMIN_EMAIL"`
	AdminPassword string `yaml:"admin_password" env:"ADMIN_PASSWORD"`
}

func defaults() *Config {
	return &Config{
		RunAddress:          "localhost:8080",
		JWTSecret:           "hazirhay-secret",
		TokenTTL:            24 * time.Hour,
		PriceCacheTTL:       10 * time.Minute,
		NotificationTopic:   "notifications",
		RatePerKm:           "10",
		CancelBlockDuration: 7 * 24 * time.Hour,
		NotifyTimeout:       5 * time.Second,
	}
}

// Parse собирает конфигурацию по слоям: значения по умолчанию, YAML-файл из CONFIG_PATH,
// флаги командной строки и переменные окружения. Каждый следующий слой перекрывает предыдущий.
func Parse() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	flag.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "JWT signing secret")
	flag.StringVar(&cfg.RedisAddress, "redis", cfg.RedisAddress, "redis address for price cache")
	flag.StringVar(&cfg.PushGatewayAddress, "p", cfg.PushGatewayAddress, "push gateway base URL")
	flag.Func("kafka", "comma-separated kafka brokers", func(v string) error {
		cfg.KafkaBrokers = splitList(v)
		return nil
	})

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.RunAddress == "" {
		return errors.New("run address is empty")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt secret is empty")
	}
	if _, err := c.Rate(); err != nil {
		return err
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return fmt.Errorf("snowflake node %d out of range 0..1023", c.SnowflakeNode)
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("admin email and password must be set together")
	}
	return nil
}

// Rate возвращает тариф выезда за километр.
func (c *Config) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.RatePerKm)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate per km %q: %w", c.RatePerKm, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("rate per km %s is negative", rate)
	}
	return rate, nil
}

func splitList(v string) []string {
	var res []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
