// Package config loads the session server configuration from config.yaml
// with environment variable overrides.
package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"featlab/internal/domain"
	"featlab/internal/selection"
)

type Config struct {
	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`

	ClassifierURL              string `yaml:"classifier_url"`
	ClassifierToken            string `yaml:"classifier_token"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`

	Stages                []domain.StageDefinition `yaml:"stages"`
	CauseCategories       []string                 `yaml:"cause_categories"`
	Gating                selection.GatingConfig   `yaml:"gating"`
	ShuffleSeed           int64                    `yaml:"shuffle_seed"`
	ScoreMetric           string                   `yaml:"score_metric"`
	DefaultScoreThreshold float64                  `yaml:"default_score_threshold"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	SuggestModel    string `yaml:"suggest_model"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`
	DigestCron     string `yaml:"digest_cron"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.ClassifierURL, "CLASSIFIER_URL")
	envOverride(&cfg.ClassifierToken, "CLASSIFIER_TOKEN")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideInt64(&cfg.ShuffleSeed, "SHUFFLE_SEED")
	envOverride(&cfg.ScoreMetric, "SCORE_METRIC")
	envOverrideFloat(&cfg.DefaultScoreThreshold, "DEFAULT_SCORE_THRESHOLD")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.SuggestModel, "SUGGEST_MODEL")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.DigestCron, "DIGEST_CRON")

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "./features.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8470"
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = []domain.StageDefinition{
			{Metric: "activation_density", Thresholds: []float64{0.01, 0.10}},
			{Metric: "label_consistency", Thresholds: []float64{0.50}},
			{Metric: "interp_score", Thresholds: []float64{0.30, 0.70}},
		}
	}
	if len(cfg.CauseCategories) == 0 {
		cfg.CauseCategories = []string{"ambiguous", "noisy", "redundant"}
	}
	if cfg.Gating == (selection.GatingConfig{}) {
		cfg.Gating = selection.DefaultGating()
	}
	if cfg.ShuffleSeed == 0 {
		cfg.ShuffleSeed = 1
	}
	if cfg.ScoreMetric == "" {
		cfg.ScoreMetric = "quality_score"
	}
	if cfg.SuggestModel == "" {
		cfg.SuggestModel = "claude-sonnet-4-5-20250929"
	}

	// Validate required fields
	if cfg.ClassifierURL == "" {
		log.Fatalf("Required config 'classifier_url' is not set (via config.yaml or env var)")
	}

	return cfg
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		} else {
			log.Printf("Ignoring invalid %s=%q: %v", key, v, err)
		}
	}
}

func envOverrideInt64(target *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		} else {
			log.Printf("Ignoring invalid %s=%q: %v", key, v, err)
		}
	}
}

func envOverrideFloat(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		} else {
			log.Printf("Ignoring invalid %s=%q: %v", key, v, err)
		}
	}
}
