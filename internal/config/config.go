package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/doctrove/enrich-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Paperless  PaperlessConfig  `yaml:"paperless" mapstructure:"paperless"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PaperlessConfig holds the document server connection settings.
type PaperlessConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Token        string  `yaml:"token" mapstructure:"token"`
	PageSize     int     `yaml:"page_size" mapstructure:"page_size"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ProcessingConfig configures the enrichment pipeline.
type ProcessingConfig struct {
	EnableTitle         bool    `yaml:"enable_title" mapstructure:"enable_title"`
	EnableTagging       bool    `yaml:"enable_tagging" mapstructure:"enable_tagging"`
	EnableMetadata      bool    `yaml:"enable_metadata" mapstructure:"enable_metadata"`
	EnableCategorize    bool    `yaml:"enable_categorization" mapstructure:"enable_categorization"`
	EnableSummary       bool    `yaml:"enable_summary" mapstructure:"enable_summary"`
	UseRuleBasedTagging bool    `yaml:"use_rule_based_tagging" mapstructure:"use_rule_based_tagging"`
	UseLLMTagging       bool    `yaml:"use_llm_tagging" mapstructure:"use_llm_tagging"`
	TagThreshold        float64 `yaml:"tag_confidence_threshold" mapstructure:"tag_confidence_threshold"`
	MaxTags             int     `yaml:"max_tags_per_document" mapstructure:"max_tags_per_document"`
	SkipIfProcessed     bool    `yaml:"skip_if_processed" mapstructure:"skip_if_processed"`
	SkipIfTitleExists   bool    `yaml:"skip_if_title_exists" mapstructure:"skip_if_title_exists"`
	SkipIfTagsExist     bool    `yaml:"skip_if_tags_exist" mapstructure:"skip_if_tags_exist"`
	ProcessedTag        string  `yaml:"processed_tag" mapstructure:"processed_tag"`
	ActionTag           string  `yaml:"action_tag" mapstructure:"action_tag"`
	SummaryMaxLength    int     `yaml:"summary_max_length" mapstructure:"summary_max_length"`
	SummaryStyle        string  `yaml:"summary_style" mapstructure:"summary_style"`
	RetryLimit          int     `yaml:"retry_limit" mapstructure:"retry_limit"`
	MaxConcurrency      int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	DocumentTimeoutSecs int     `yaml:"document_timeout_secs" mapstructure:"document_timeout_secs"`
	CacheTTLHours       int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	GracePeriodSecs     int     `yaml:"grace_period_secs" mapstructure:"grace_period_secs"`
}

// Options converts the config section into the immutable options
// snapshot handed to the processor and orchestrator.
func (p ProcessingConfig) Options() model.ProcessingOptions {
	return model.ProcessingOptions{
		EnableTitle:            p.EnableTitle,
		EnableTagging:          p.EnableTagging,
		EnableMetadata:         p.EnableMetadata,
		EnableCategorize:       p.EnableCategorize,
		EnableSummary:          p.EnableSummary,
		UseRuleBasedTagging:    p.UseRuleBasedTagging,
		UseLLMTagging:          p.UseLLMTagging,
		TagConfidenceThreshold: p.TagThreshold,
		MaxTagsPerDocument:     p.MaxTags,
		SkipIfProcessed:        p.SkipIfProcessed,
		SkipIfTitleExists:      p.SkipIfTitleExists,
		SkipIfTagsExist:        p.SkipIfTagsExist,
		ProcessedTag:           p.ProcessedTag,
		ActionTag:              p.ActionTag,
		SummaryMaxLength:       p.SummaryMaxLength,
		SummaryStyle:           p.SummaryStyle,
		RetryLimit:             p.RetryLimit,
		MaxConcurrency:         p.MaxConcurrency,
		DocumentTimeout:        time.Duration(p.DocumentTimeoutSecs) * time.Second,
		CacheTTL:               time.Duration(p.CacheTTLHours) * time.Hour,
		GracePeriod:            time.Duration(p.GracePeriodSecs) * time.Second,
	}
}

// RulesConfig points at an optional custom tag-rule file.
type RulesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// CatalogConfig tunes how proposed names are matched against existing
// tags and correspondents. Aliases maps a synonym to the canonical
// name it should resolve to.
type CatalogConfig struct {
	Aliases map[string]string `yaml:"aliases" mapstructure:"aliases"`
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	defaults := model.DefaultOptions()
	v.SetDefault("paperless.page_size", 100)
	v.SetDefault("paperless.rate_limit_rps", 5.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("processing.enable_title", defaults.EnableTitle)
	v.SetDefault("processing.enable_tagging", defaults.EnableTagging)
	v.SetDefault("processing.enable_metadata", defaults.EnableMetadata)
	v.SetDefault("processing.enable_categorization", defaults.EnableCategorize)
	v.SetDefault("processing.enable_summary", defaults.EnableSummary)
	v.SetDefault("processing.use_rule_based_tagging", defaults.UseRuleBasedTagging)
	v.SetDefault("processing.use_llm_tagging", defaults.UseLLMTagging)
	v.SetDefault("processing.tag_confidence_threshold", defaults.TagConfidenceThreshold)
	v.SetDefault("processing.max_tags_per_document", defaults.MaxTagsPerDocument)
	v.SetDefault("processing.skip_if_processed", defaults.SkipIfProcessed)
	v.SetDefault("processing.skip_if_title_exists", defaults.SkipIfTitleExists)
	v.SetDefault("processing.skip_if_tags_exist", defaults.SkipIfTagsExist)
	v.SetDefault("processing.processed_tag", defaults.ProcessedTag)
	v.SetDefault("processing.action_tag", defaults.ActionTag)
	v.SetDefault("processing.summary_max_length", defaults.SummaryMaxLength)
	v.SetDefault("processing.summary_style", defaults.SummaryStyle)
	v.SetDefault("processing.retry_limit", defaults.RetryLimit)
	v.SetDefault("processing.max_concurrency", defaults.MaxConcurrency)
	v.SetDefault("processing.document_timeout_secs", 300)
	v.SetDefault("processing.cache_ttl_hours", 1)
	v.SetDefault("processing.grace_period_secs", 5)
	v.SetDefault("store.path", "enrich.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.Paperless.BaseURL == "" {
		return eris.New("config: paperless.base_url is required")
	}
	if c.Paperless.Token == "" {
		return eris.New("config: paperless.token is required")
	}
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
