package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	ProxyPort   int    `mapstructure:"proxy_port"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type UpstreamConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	TenantID string        `mapstructure:"tenant_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

type AnalysisConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	FailOpen         bool          `mapstructure:"fail_open"`
	FeatureCacheSize int           `mapstructure:"feature_cache_size"`
	HistoryDepth     int           `mapstructure:"history_depth"`
	MatchBudget      int           `mapstructure:"match_budget"`
}

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"` // "memory" or "redis"
	MaxRequests   int           `mapstructure:"max_requests"`
	Window        time.Duration `mapstructure:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	StoreCap      int           `mapstructure:"store_cap"`
}

type PolicyConfig struct {
	BlockThreshold     float64 `mapstructure:"block_threshold"`
	ChallengeThreshold float64 `mapstructure:"challenge_threshold"`
	MonitorThreshold   float64 `mapstructure:"monitor_threshold"`
	EnforcementMode    string  `mapstructure:"enforcement_mode"`
	SecurityEngine     string  `mapstructure:"security_engine"`
}

type WebhooksConfig struct {
	Endpoints  []string      `mapstructure:"endpoints"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	AlertScore float64       `mapstructure:"alert_score"`
}

type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	EnableLatency  bool `mapstructure:"enable_latency"`
	EnableUpstream bool `mapstructure:"enable_upstream"`
	EnablePerPath  bool `mapstructure:"enable_per_path"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %w", err)
	}
	setDefaultValues()
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found, using only environment variables", fileName)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Analysis.Timeout <= 0 {
		globalConfig.Analysis.Timeout = 5 * time.Second
	}
	if globalConfig.Analysis.FeatureCacheSize <= 0 {
		globalConfig.Analysis.FeatureCacheSize = 5000
	}
	if globalConfig.Analysis.HistoryDepth <= 0 {
		globalConfig.Analysis.HistoryDepth = 100
	}
	if globalConfig.Analysis.MatchBudget <= 0 {
		globalConfig.Analysis.MatchBudget = 500
	}
	if globalConfig.RateLimit.Backend == "" {
		globalConfig.RateLimit.Backend = "memory"
	}
	if globalConfig.RateLimit.MaxRequests <= 0 {
		globalConfig.RateLimit.MaxRequests = 100
	}
	if globalConfig.RateLimit.Window <= 0 {
		globalConfig.RateLimit.Window = time.Minute
	}
	if globalConfig.RateLimit.BlockDuration <= 0 {
		globalConfig.RateLimit.BlockDuration = 5 * time.Minute
	}
	if globalConfig.RateLimit.StoreCap <= 0 {
		globalConfig.RateLimit.StoreCap = 10000
	}
	if globalConfig.Policy.BlockThreshold <= 0 {
		globalConfig.Policy.BlockThreshold = 80
	}
	if globalConfig.Policy.ChallengeThreshold <= 0 {
		globalConfig.Policy.ChallengeThreshold = 60
	}
	if globalConfig.Policy.MonitorThreshold <= 0 {
		globalConfig.Policy.MonitorThreshold = 40
	}
	if globalConfig.Policy.EnforcementMode == "" {
		globalConfig.Policy.EnforcementMode = "block"
	}
	if globalConfig.Upstream.Timeout <= 0 {
		globalConfig.Upstream.Timeout = 30 * time.Second
	}
	if globalConfig.Webhooks.MaxRetries <= 0 {
		globalConfig.Webhooks.MaxRetries = 3
	}
	if globalConfig.Webhooks.Timeout <= 0 {
		globalConfig.Webhooks.Timeout = 5 * time.Second
	}
	if globalConfig.Webhooks.AlertScore <= 0 {
		globalConfig.Webhooks.AlertScore = 65
	}
}

func GetConfig() *Config {
	return &globalConfig
}
