// Package config handles static configuration management with validation.
// Runtime-mutable settings (pair, slippage, wait, data windows) live in the
// settings store instead; this file covers what is fixed at process start.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete static configuration structure
type Config struct {
	App       AppConfig       `yaml:"app"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Decision  DecisionConfig  `yaml:"decision"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Trading   TradingConfig   `yaml:"trading"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	LogLevel       string `yaml:"log_level"`
	SettingsDBPath string `yaml:"settings_db_path"`
}

// ExchangeConfig contains OKX credentials and endpoint overrides
type ExchangeConfig struct {
	APIKey     string `yaml:"api_key"`
	SecretKey  string `yaml:"secret_key"`
	Passphrase string `yaml:"passphrase"`
	BaseURL    string `yaml:"base_url"` // optional override for API URL
	Demo       bool   `yaml:"demo"`     // simulated-trading mode
}

// DecisionConfig selects and configures the decision service client
type DecisionConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "gemini"
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"` // gemini only
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TelegramConfig contains notification and command-listener settings
type TelegramConfig struct {
	BotToken           string  `yaml:"bot_token"`
	UserIDs            []int64 `yaml:"user_ids"`
	PollTimeoutSeconds int     `yaml:"poll_timeout_seconds"`
}

// TradingConfig contains the fixed trading policy
type TradingConfig struct {
	DefaultPair        string  `yaml:"default_pair"`
	TradeFraction      float64 `yaml:"trade_fraction"`
	StopMultiplier     float64 `yaml:"stop_multiplier"`
	ProfitMultiplier   float64 `yaml:"profit_multiplier"`
	MinNotional        float64 `yaml:"min_notional"`
	DefaultWaitSeconds int     `yaml:"default_wait_seconds"`
	BuySlippagePct     float64 `yaml:"buy_slippage_pct"`  // seed for the settings store
	SellSlippagePct    float64 `yaml:"sell_slippage_pct"` // seed for the settings store
	ATRBar             string  `yaml:"atr_bar"`
	ATRWindow          int     `yaml:"atr_window"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "INFO"
	}
	if c.App.SettingsDBPath == "" {
		c.App.SettingsDBPath = "data/settings.db"
	}
	if c.Decision.TimeoutSeconds == 0 {
		c.Decision.TimeoutSeconds = 120
	}
	if c.Telegram.PollTimeoutSeconds == 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
	if c.Trading.DefaultPair == "" {
		c.Trading.DefaultPair = "BTC-USDT"
	}
	if c.Trading.TradeFraction == 0 {
		c.Trading.TradeFraction = 0.1
	}
	if c.Trading.StopMultiplier == 0 {
		c.Trading.StopMultiplier = 1.5
	}
	if c.Trading.ProfitMultiplier == 0 {
		c.Trading.ProfitMultiplier = 3.0
	}
	if c.Trading.MinNotional == 0 {
		c.Trading.MinNotional = 2.0
	}
	if c.Trading.DefaultWaitSeconds == 0 {
		c.Trading.DefaultWaitSeconds = 150
	}
	if c.Trading.ATRBar == "" {
		c.Trading.ATRBar = "5m"
	}
	if c.Trading.ATRWindow == 0 {
		c.Trading.ATRWindow = 14
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateApp(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateExchange(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateDecision(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateTrading(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateApp() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.App.LogLevel)) {
		return ValidationError{
			Field:   "app.log_level",
			Value:   c.App.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateExchange() error {
	if c.Exchange.APIKey == "" {
		return ValidationError{Field: "exchange.api_key", Message: "API key is required"}
	}
	if c.Exchange.SecretKey == "" {
		return ValidationError{Field: "exchange.secret_key", Message: "secret key is required"}
	}
	if c.Exchange.Passphrase == "" {
		return ValidationError{Field: "exchange.passphrase", Message: "passphrase is required"}
	}
	if c.Exchange.BaseURL != "" && !strings.HasPrefix(c.Exchange.BaseURL, "https://") {
		// Allow http for local testing
		if !strings.Contains(c.Exchange.BaseURL, "127.0.0.1") && !strings.Contains(c.Exchange.BaseURL, "localhost") {
			return ValidationError{
				Field:   "exchange.base_url",
				Value:   c.Exchange.BaseURL,
				Message: "must start with https://",
			}
		}
	}
	return nil
}

func (c *Config) validateDecision() error {
	validProviders := []string{"ollama", "gemini"}
	if !contains(validProviders, c.Decision.Provider) {
		return ValidationError{
			Field:   "decision.provider",
			Value:   c.Decision.Provider,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validProviders, ", ")),
		}
	}
	if c.Decision.Model == "" {
		return ValidationError{Field: "decision.model", Message: "model is required"}
	}
	if c.Decision.Provider == "gemini" && c.Decision.APIKey == "" {
		return ValidationError{Field: "decision.api_key", Message: "API key is required for gemini"}
	}
	return nil
}

func (c *Config) validateTrading() error {
	if c.Trading.TradeFraction <= 0 || c.Trading.TradeFraction > 1 {
		return ValidationError{
			Field:   "trading.trade_fraction",
			Value:   c.Trading.TradeFraction,
			Message: "must be in (0, 1]",
		}
	}
	if c.Trading.StopMultiplier <= 0 || c.Trading.ProfitMultiplier <= 0 {
		return ValidationError{
			Field:   "trading.stop_multiplier",
			Message: "bracket multipliers must be positive",
		}
	}
	if c.Trading.BuySlippagePct < 0 || c.Trading.SellSlippagePct < 0 {
		return ValidationError{
			Field:   "trading.buy_slippage_pct",
			Message: "slippage percentages must be non-negative",
		}
	}
	return nil
}

// expandEnvVars expands ${VAR} references in the YAML content
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
