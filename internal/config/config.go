package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	User         UserConfig
	Detection    DetectionConfig
	Canonicalize CanonicalizeConfig
	Analysis     AnalysisConfig
	Embedding    EmbeddingConfig
	Store        StoreConfig
	BigQuery     BigQueryConfig
	Notion       NotionConfig
}

// UserConfig holds profile defaults for a fresh document.
type UserConfig struct {
	Name string
}

// DetectionConfig holds recurrence detection thresholds.
type DetectionConfig struct {
	MinAmount         float64 `mapstructure:"min_amount"`
	MinTransactions   int     `mapstructure:"min_transactions"`
	MinGapDays        int     `mapstructure:"min_gap_days"`
	MaxGapDays        int     `mapstructure:"max_gap_days"`
	VarianceTolerance float64 `mapstructure:"variance_tolerance"`
}

// CanonicalizeConfig holds merchant-name clustering settings.
type CanonicalizeConfig struct {
	Enabled   bool
	Threshold float64
	Merge     string // running_sum | mean
}

// AnalysisConfig holds trend and anomaly settings. Validate rejects a
// non-positive AnomalyThreshold.
type AnalysisConfig struct {
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string // gemini | hash | none
	Model      string
	APIKeyEnv  string `mapstructure:"api_key_env"`
	Dimensions int
	CachePath  string `mapstructure:"cache_path"`
}

// StoreConfig selects where the bills document lives.
type StoreConfig struct {
	Backend string // file | gcs
	Path    string
	Bucket  string
	Object  string
}

// BigQueryConfig points at the warehouse holding transactions and bills.
type BigQueryConfig struct {
	Project string
	Dataset string
}

// NotionConfig holds the bills database used by sync-notion.
type NotionConfig struct {
	TokenEnv   string `mapstructure:"token_env"`
	DatabaseID string `mapstructure:"database_id"`
}

// Load reads configuration from file and env. Env var overrides use prefix BILLS_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BILLS_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "bill-tracker"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BILLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit BILLS_CONFIG that cannot be read is an error
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	v := viper.New()
	setDefaults(v)

	var c Config
	// defaults are static and always decode
	_ = v.Unmarshal(&c)
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user.name", "Derek")

	v.SetDefault("detection.min_amount", 5.0)
	v.SetDefault("detection.min_transactions", 2)
	v.SetDefault("detection.min_gap_days", 25)
	v.SetDefault("detection.max_gap_days", 35)
	v.SetDefault("detection.variance_tolerance", 0.8)

	v.SetDefault("canonicalize.enabled", true)
	v.SetDefault("canonicalize.threshold", 0.85)
	v.SetDefault("canonicalize.merge", "running_sum")

	v.SetDefault("analysis.anomaly_threshold", 3.5)

	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("embedding.dimensions", 256)
	v.SetDefault("embedding.cache_path", filepath.Join(os.Getenv("HOME"), ".cache", "bill-tracker", "embeddings.db"))

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", filepath.Join(os.Getenv("HOME"), ".derin_bills.json"))
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.object", "derin/bills.json")

	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "finance")

	v.SetDefault("notion.token_env", "NOTION_TOKEN")
	v.SetDefault("notion.database_id", "")
}

// Validate rejects settings the detection pipeline cannot run with.
func (c Config) Validate() error {
	d := c.Detection
	if d.MinAmount < 0 {
		return fmt.Errorf("detection.min_amount must be >= 0, got %v", d.MinAmount)
	}
	if d.MinTransactions < 2 {
		return fmt.Errorf("detection.min_transactions must be >= 2, got %d", d.MinTransactions)
	}
	if d.MinGapDays < 0 || d.MaxGapDays < d.MinGapDays {
		return fmt.Errorf("detection gap window [%d, %d] is invalid", d.MinGapDays, d.MaxGapDays)
	}
	if d.VarianceTolerance <= 0 {
		return fmt.Errorf("detection.variance_tolerance must be > 0, got %v", d.VarianceTolerance)
	}

	if c.Canonicalize.Threshold < -1 || c.Canonicalize.Threshold > 1 {
		return fmt.Errorf("canonicalize.threshold must be within [-1, 1], got %v", c.Canonicalize.Threshold)
	}
	switch c.Canonicalize.Merge {
	case "running_sum", "mean":
	default:
		return fmt.Errorf("canonicalize.merge must be running_sum or mean, got %q", c.Canonicalize.Merge)
	}

	if c.Analysis.AnomalyThreshold <= 0 {
		return fmt.Errorf("analysis.anomaly_threshold must be > 0, got %v", c.Analysis.AnomalyThreshold)
	}

	switch c.Embedding.Provider {
	case "gemini", "hash", "none":
	default:
		return fmt.Errorf("embedding.provider must be gemini, hash or none, got %q", c.Embedding.Provider)
	}

	switch c.Store.Backend {
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case "gcs":
		if c.Store.Bucket == "" || c.Store.Object == "" {
			return fmt.Errorf("store.bucket and store.object are required for the gcs backend")
		}
	default:
		return fmt.Errorf("store.backend must be file or gcs, got %q", c.Store.Backend)
	}

	return nil
}
