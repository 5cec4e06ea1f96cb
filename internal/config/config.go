package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LATENCYMON_ESPN_GAME_ID.
const EnvPrefix = "LATENCYMON"

// Config represents the complete application configuration
type Config struct {
	ESPN     ESPNConfig     `mapstructure:"espn"`
	Kalshi   KalshiConfig   `mapstructure:"kalshi"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ESPNConfig holds the game summary poller configuration
type ESPNConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	GameID       string        `mapstructure:"game_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
}

// KalshiConfig holds the Kalshi WebSocket configuration
type KalshiConfig struct {
	WSURL            string   `mapstructure:"ws_url"`
	APIKeyID         string   `mapstructure:"api_key_id"`
	PrivateKey       string   `mapstructure:"private_key"`
	PrivateKeyPath   string   `mapstructure:"private_key_path"`
	MarketTicker     string   `mapstructure:"market_ticker"`
	OrderbookChannel string   `mapstructure:"orderbook_channel"`
	TradeTickers     []string `mapstructure:"trade_tickers"` // empty = all markets
}

// MonitorConfig holds detection thresholds
type MonitorConfig struct {
	WinProbThreshold float64 `mapstructure:"win_prob_threshold"`
	WhaleThreshold   float64 `mapstructure:"whale_threshold"`
	EventBuffer      int     `mapstructure:"event_buffer"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process environment.
// A missing file is not an error. Variables already set are not overwritten.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Env values arrive as "A, B"; normalize both forms.
	cfg.Kalshi.TradeTickers = splitList(strings.Join(cfg.Kalshi.TradeTickers, ","))

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// Every key needs a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// ESPN defaults
	v.SetDefault("espn.base_url", "https://site.api.espn.com")
	v.SetDefault("espn.game_id", "")
	v.SetDefault("espn.poll_interval", "500ms")
	v.SetDefault("espn.timeout", "10s")
	v.SetDefault("espn.max_retries", 3)
	v.SetDefault("espn.rate_limit", 4.0)

	// Kalshi defaults
	v.SetDefault("kalshi.ws_url", "wss://api.elections.kalshi.com/trade-api/ws/v2")
	v.SetDefault("kalshi.api_key_id", "")
	v.SetDefault("kalshi.private_key", "")
	v.SetDefault("kalshi.private_key_path", "")
	v.SetDefault("kalshi.market_ticker", "")
	v.SetDefault("kalshi.orderbook_channel", "ticker")
	v.SetDefault("kalshi.trade_tickers", []string{})

	// Monitor defaults
	v.SetDefault("monitor.win_prob_threshold", 0.05)
	v.SetDefault("monitor.whale_threshold", 10000.0)
	v.SetDefault("monitor.event_buffer", 64)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid. Missing required
// settings are reported together in one error.
func (c *Config) Validate() error {
	var missing []string
	if c.ESPN.GameID == "" {
		missing = append(missing, "espn.game_id")
	}
	if c.Kalshi.MarketTicker == "" {
		missing = append(missing, "kalshi.market_ticker")
	}
	if c.Kalshi.APIKeyID == "" {
		missing = append(missing, "kalshi.api_key_id")
	}
	if c.Kalshi.PrivateKey == "" && c.Kalshi.PrivateKeyPath == "" {
		missing = append(missing, "kalshi.private_key (or kalshi.private_key_path)")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			missing = append(missing, "telegram.bot_token")
		}
		if c.Telegram.ChatID == "" {
			missing = append(missing, "telegram.chat_id")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	// Validate ESPN config
	if c.ESPN.BaseURL == "" {
		return fmt.Errorf("espn.base_url is required")
	}
	if c.ESPN.PollInterval < 50*time.Millisecond {
		return fmt.Errorf("espn.poll_interval must be at least 50ms")
	}
	if c.ESPN.MaxRetries < 0 {
		return fmt.Errorf("espn.max_retries must not be negative")
	}
	if c.ESPN.RateLimit < 0 {
		return fmt.Errorf("espn.rate_limit must not be negative")
	}

	// Validate Kalshi config
	if c.Kalshi.WSURL == "" {
		return fmt.Errorf("kalshi.ws_url is required")
	}
	if c.Kalshi.OrderbookChannel != "ticker" && c.Kalshi.OrderbookChannel != "orderbook_delta" {
		return fmt.Errorf("kalshi.orderbook_channel must be one of: ticker, orderbook_delta")
	}

	// Validate Monitor config
	if c.Monitor.WinProbThreshold <= 0.0 || c.Monitor.WinProbThreshold > 1.0 {
		return fmt.Errorf("monitor.win_prob_threshold must be in (0.0, 1.0]")
	}
	if c.Monitor.WhaleThreshold <= 0 {
		return fmt.Errorf("monitor.whale_threshold must be positive")
	}
	if c.Monitor.EventBuffer < 1 {
		return fmt.Errorf("monitor.event_buffer must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// PrivateKeyPEM returns the inline private key, or reads it from private_key_path.
func (k KalshiConfig) PrivateKeyPEM() ([]byte, error) {
	if k.PrivateKey != "" {
		return []byte(k.PrivateKey), nil
	}
	data, err := os.ReadFile(k.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read kalshi private key: %w", err)
	}
	return data, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
