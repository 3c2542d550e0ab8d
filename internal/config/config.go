package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"WhaleConsensus/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Polymarket struct {
		DataURL       string        `yaml:"data_url"`
		ClobURL       string        `yaml:"clob_url"`
		GammaURL      string        `yaml:"gamma_url"`
		RatePerSecond float64       `yaml:"rate_per_second"`
		Burst         int           `yaml:"burst"`
		Concurrency   int           `yaml:"concurrency"`
		ActivityLimit int           `yaml:"activity_limit"`
		Timeout       time.Duration `yaml:"timeout"`
		Lookback      time.Duration `yaml:"lookback"`
	} `yaml:"polymarket"`
	Schedule struct {
		Cycle        string `yaml:"cycle"`
		WhaleRefresh string `yaml:"whale_refresh"`
		RunOnStart   bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Engine    model.Settings `yaml:"engine"`
	Watchlist struct {
		StateFile string   `yaml:"state_file"`
		Wallets   []string `yaml:"wallets"`
	} `yaml:"watchlist"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr      string        `yaml:"addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix"`
		PriceTTL  time.Duration `yaml:"price_ttl"`
		MarketTTL time.Duration `yaml:"market_ttl"`
		WhaleTTL  time.Duration `yaml:"whale_ttl"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Chain struct {
		RPCURL      string `yaml:"rpc_url"`
		USDCAddress string `yaml:"usdc_address"`
	} `yaml:"chain"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then .env, then environment variable
// overrides, then fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{Engine: model.DefaultSettings()}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.Polymarket.DataURL, "POLYMARKET_DATA_URL")
	setString(&cfg.Polymarket.ClobURL, "POLYMARKET_CLOB_URL")
	setString(&cfg.Polymarket.GammaURL, "POLYMARKET_GAMMA_URL")
	setString(&cfg.Schedule.Cycle, "CRON_CYCLE")
	setString(&cfg.Schedule.WhaleRefresh, "CRON_WHALE_REFRESH")
	setString(&cfg.Watchlist.StateFile, "WATCHLIST_FILE")
	setString(&cfg.Database.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	setString(&cfg.Chain.RPCURL, "POLYGON_RPC_URL")
	setString(&cfg.Chain.USDCAddress, "USDC_ADDRESS")
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Proxy, "HTTPS_PROXY")

	if v := os.Getenv("TRACKED_WALLETS"); v != "" {
		cfg.Watchlist.Wallets = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONCURRENCY: %w", err)
		}
		cfg.Polymarket.Concurrency = n
	}
	if v := os.Getenv("DEFAULT_BALANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DEFAULT_BALANCE: %w", err)
		}
		cfg.Engine.DefaultBalance = f
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		cfg.Log.Pretty = b
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		cfg.Schedule.RunOnStart = b
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Polymarket.RatePerSecond == 0 {
		cfg.Polymarket.RatePerSecond = 10
	}
	if cfg.Polymarket.Burst == 0 {
		cfg.Polymarket.Burst = 10
	}
	if cfg.Polymarket.Concurrency == 0 {
		cfg.Polymarket.Concurrency = 10
	}
	if cfg.Polymarket.ActivityLimit == 0 {
		cfg.Polymarket.ActivityLimit = 500
	}
	if cfg.Polymarket.Timeout == 0 {
		cfg.Polymarket.Timeout = 20 * time.Second
	}
	if cfg.Polymarket.Lookback == 0 {
		cfg.Polymarket.Lookback = 7 * 24 * time.Hour
	}
	if cfg.Schedule.Cycle == "" {
		cfg.Schedule.Cycle = "@every 5s"
	}
	if cfg.Schedule.WhaleRefresh == "" {
		cfg.Schedule.WhaleRefresh = "0 0 * * * *"
	}
	if cfg.Watchlist.StateFile == "" {
		cfg.Watchlist.StateFile = "data/watchlist.json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/whale_consensus.db"
	}
	if cfg.Redis.PriceTTL == 0 {
		cfg.Redis.PriceTTL = 5 * time.Minute
	}
	if cfg.Redis.MarketTTL == 0 {
		cfg.Redis.MarketTTL = 24 * time.Hour
	}
	if cfg.Redis.WhaleTTL == 0 {
		cfg.Redis.WhaleTTL = time.Hour
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "whale-consensus.signals"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Telegram.ChatID != "" {
		if _, err := strconv.ParseInt(c.Telegram.ChatID, 10, 64); err != nil {
			return fmt.Errorf("telegram.chat_id must be numeric: %w", err)
		}
	}
	if c.Polymarket.Concurrency < 1 {
		return fmt.Errorf("polymarket.concurrency must be positive")
	}
	if c.Polymarket.RatePerSecond < 0 {
		return fmt.Errorf("polymarket.rate_per_second must not be negative")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.Cycle); err != nil {
		return fmt.Errorf("schedule.cycle: %w", err)
	}
	if _, err := parser.Parse(c.Schedule.WhaleRefresh); err != nil {
		return fmt.Errorf("schedule.whale_refresh: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// TelegramEnabled reports whether alerts and commands are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
