package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                int    `env:"PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisURL            string `env:"REDIS_URL,required"`
	APIBaseURL          string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	JWTSecret           string `env:"JWT_SECRET,required"`
	PairCodeTTLMinutes  int    `env:"PAIR_CODE_TTL_MINUTES" envDefault:"15"`
	InfluxURL           string `env:"INFLUXDB_URL,required"`
	InfluxToken         string `env:"INFLUXDB_TOKEN,required"`
	InfluxOrg           string `env:"INFLUXDB_ORG,required"`
	InfluxBucket        string `env:"INFLUXDB_BUCKET,required"`
	PairRateLimitPerMin int    `env:"PAIR_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairCodeTTL() time.Duration {
	return time.Duration(c.PairCodeTTLMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MetricsURL is the ingest endpoint handed to agents once pairing is confirmed.
func (c *Config) MetricsURL() string {
	return c.APIBaseURL + "/api/metrics"
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters (generate with: openssl rand -base64 32)")
	}
	if c.PairCodeTTLMinutes <= 0 {
		return fmt.Errorf("PAIR_CODE_TTL_MINUTES must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
