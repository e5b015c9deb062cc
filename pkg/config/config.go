package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Pricing  PricingConfig
	Estimate EstimateConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type LLMConfig struct {
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

// PricingConfig tunes the market price aggregator. ExcludedTerms and
// ExcludedPrefixes form the forced-zero gate: matching descriptions are never
// priced. The defaults mirror the product's current exclusion list; treat
// changes as product decisions.
type PricingConfig struct {
	SiteLocation     string
	ExcludedTerms    []string
	ExcludedPrefixes []string
	MaxListings      int
	WebSearchSec     int
	VendorSearchURL  string
}

// EstimateConfig carries the summary ratios. The labor and contingency
// ratios are conventions with no documented sourcing, so they live in
// configuration rather than code.
type EstimateConfig struct {
	LaborRatio            float64
	ContingencyRatio      float64
	DefaultContingencyPct float64
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/costquest")

	viper.SetEnvPrefix("COSTQUEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 120)
	viper.SetDefault("server.writeTimeout", 300)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/costquest.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 4096)
	viper.SetDefault("llm.timeoutSec", 120)

	viper.SetDefault("pricing.siteLocation", "Cebu, Philippines")
	viper.SetDefault("pricing.excludedTerms", []string{
		"steel beam", "steel column", "i-beam", "h-beam",
	})
	viper.SetDefault("pricing.excludedPrefixes", []string{"water"})
	viper.SetDefault("pricing.maxListings", 8)
	viper.SetDefault("pricing.webSearchSec", 10)
	viper.SetDefault("pricing.vendorSearchURL", "")

	viper.SetDefault("estimate.laborRatio", 0.40)
	viper.SetDefault("estimate.contingencyRatio", 0.05)
	viper.SetDefault("estimate.defaultContingencyPct", 0.10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
