package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Redis
	RedisURL    string        `mapstructure:"REDIS_URL"`
	EnableCache bool          `mapstructure:"ENABLE_CACHE"`
	CacheTTL    time.Duration `mapstructure:"CACHE_TTL"`

	// Lineup search
	SearchWorkers int           `mapstructure:"SEARCH_WORKERS"` // 0 = runtime.NumCPU()
	SearchTimeout time.Duration `mapstructure:"SEARCH_TIMEOUT"`
	MaxCandidates int           `mapstructure:"MAX_CANDIDATES"`

	// Portfolio
	DefaultContestType   string `mapstructure:"DEFAULT_CONTEST_TYPE"`
	DefaultPortfolioSize int    `mapstructure:"DEFAULT_PORTFOLIO_SIZE"`
	UploadBatchSize      int    `mapstructure:"UPLOAD_BATCH_SIZE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8083")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/2")
	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_TTL", "24h")
	v.SetDefault("SEARCH_WORKERS", 0)
	v.SetDefault("SEARCH_TIMEOUT", "30s")
	v.SetDefault("MAX_CANDIDATES", 50000000)
	v.SetDefault("DEFAULT_CONTEST_TYPE", "Showdown")
	v.SetDefault("DEFAULT_PORTFOLIO_SIZE", 20)
	v.SetDefault("UPLOAD_BATCH_SIZE", 500) // DraftKings rejects larger upload files
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	setDefaults(v)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.SearchWorkers < 0 {
		return fmt.Errorf("SEARCH_WORKERS must be >= 0, got %d", c.SearchWorkers)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("MAX_CANDIDATES must be positive, got %d", c.MaxCandidates)
	}
	if c.UploadBatchSize <= 0 || c.UploadBatchSize > 500 {
		return fmt.Errorf("UPLOAD_BATCH_SIZE must be in [1, 500], got %d", c.UploadBatchSize)
	}
	if c.DefaultPortfolioSize <= 0 {
		return fmt.Errorf("DEFAULT_PORTFOLIO_SIZE must be positive, got %d", c.DefaultPortfolioSize)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
