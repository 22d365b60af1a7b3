package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DataSourcePostgres = "postgres"
	DataSourceFixture  = "fixture"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	DataSource      string        `mapstructure:"DATA_SOURCE"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	DBSearchPath    string        `mapstructure:"DB_SEARCH_PATH"`
	FixtureFile     string        `mapstructure:"FIXTURE_FILE"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	MaxObservations int           `mapstructure:"MAX_OBSERVATIONS"`
	MaxMedications  int           `mapstructure:"MAX_MEDICATIONS"`
	MaxAppointments int           `mapstructure:"MAX_APPOINTMENTS"`
	QueryTimeout    time.Duration `mapstructure:"QUERY_TIMEOUT"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATA_SOURCE", DataSourcePostgres)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SEARCH_PATH", "olids_person_demographics,dbt_staging,public")
	v.SetDefault("CORS_ORIGINS", "http://localhost:8501")
	v.SetDefault("MAX_OBSERVATIONS", 1000)
	v.SetDefault("MAX_MEDICATIONS", 1000)
	v.SetDefault("MAX_APPOINTMENTS", 10000)
	v.SetDefault("QUERY_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATA_SOURCE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DB_SEARCH_PATH")
	v.BindEnv("FIXTURE_FILE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MAX_OBSERVATIONS")
	v.BindEnv("MAX_MEDICATIONS")
	v.BindEnv("MAX_APPOINTMENTS")
	v.BindEnv("QUERY_TIMEOUT")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.DataSource = strings.ToLower(strings.TrimSpace(cfg.DataSource))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesFixture reports whether records are served from a YAML fixture
// instead of the warehouse.
func (c *Config) UsesFixture() bool {
	return c.DataSource == DataSourceFixture
}

// Validate checks that the configuration is consistent. The warehouse URL
// is required for the postgres source and the fixture path for the
// fixture source; fixtures are refused in production.
func (c *Config) Validate() error {
	switch c.DataSource {
	case DataSourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case DataSourceFixture:
		if c.FixtureFile == "" {
			return fmt.Errorf("FIXTURE_FILE is required when DATA_SOURCE is %q", DataSourceFixture)
		}
		if c.IsProduction() {
			return fmt.Errorf("DATA_SOURCE=%q is not allowed in production", DataSourceFixture)
		}
	default:
		return fmt.Errorf("DATA_SOURCE must be %q or %q, got %q", DataSourcePostgres, DataSourceFixture, c.DataSource)
	}

	if c.DBMinConns < 0 || c.DBMaxConns < 1 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must be between 0 and DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MaxObservations < 1 {
		return fmt.Errorf("MAX_OBSERVATIONS must be positive, got %d", c.MaxObservations)
	}
	if c.MaxMedications < 1 {
		return fmt.Errorf("MAX_MEDICATIONS must be positive, got %d", c.MaxMedications)
	}
	if c.MaxAppointments < 1 {
		return fmt.Errorf("MAX_APPOINTMENTS must be positive, got %d", c.MaxAppointments)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	return nil
}
