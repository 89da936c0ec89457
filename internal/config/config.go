package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	DB        DB            `toml:"db"`
	Etherscan Etherscan     `toml:"etherscan"`
	Crawler   Crawler       `toml:"crawler"`
	Server    Server        `toml:"server"`
	Logger    logger.Config `toml:"logger"`
}

var DefaultConfig = Config{
	DB:        defaultDB,
	Etherscan: defaultEtherscan,
	Crawler:   defaultCrawler,
	Server:    defaultServer,
	Logger:    logger.DefaultConfig(),
}

type DB struct {
	Host             string `toml:"host" env:"DB_HOST"`
	Port             int    `toml:"port" env:"DB_PORT"`
	Username         string `toml:"username" env:"DB_USERNAME"`
	Password         string `toml:"password" env:"DB_PASSWORD"`
	DBName           string `toml:"db_name" env:"DB_NAME"`
	LogQueries       bool   `toml:"log_queries"`
	DropTableAtStart bool   `toml:"drop_table_at_start"`
}

var defaultDB = DB{
	Host: "localhost",
	Port: 5432,
}

type Etherscan struct {
	BaseURL             string  `toml:"base_url" env:"ETHERSCAN_BASE_URL"`
	APIKey              string  `toml:"api_key" env:"ETHERSCAN_API_KEY"`
	PageSize            int     `toml:"page_size"`
	DelayBetweenPagesMs int     `toml:"delay_between_pages_ms"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
	DefaultStartBlock   uint64  `toml:"default_start_block" env:"ETHERSCAN_DEFAULT_START_BLOCK"`
}

var defaultEtherscan = Etherscan{
	BaseURL:             "https://api.etherscan.io/api",
	PageSize:            5,
	DelayBetweenPagesMs: 200,
	TimeoutSeconds:      30,
	RequestsPerSecond:   5,
	DefaultStartBlock:   19_000_000,
}

func (e Etherscan) DelayBetweenPages() time.Duration {
	return time.Duration(e.DelayBetweenPagesMs) * time.Millisecond
}

func (e Etherscan) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

type Crawler struct {
	Addresses           []string `toml:"addresses" env:"CRAWLER_ADDRESSES" envSeparator:","`
	IntervalMinutes     int      `toml:"interval_minutes"`
	InitialDelaySeconds int      `toml:"initial_delay_seconds"`
	CategoryDelayMs     int      `toml:"category_delay_ms"`
	ParallelCategories  bool     `toml:"parallel_categories"`
}

var defaultCrawler = Crawler{
	IntervalMinutes:     5,
	InitialDelaySeconds: 5,
	CategoryDelayMs:     1000,
}

func (c Crawler) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c Crawler) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelaySeconds) * time.Second
}

func (c Crawler) CategoryDelay() time.Duration {
	return time.Duration(c.CategoryDelayMs) * time.Millisecond
}

type Server struct {
	Enabled       bool   `toml:"enabled"`
	ListenAddress string `toml:"listen_address" env:"SERVER_LISTEN_ADDRESS"`
}

var defaultServer = Server{
	Enabled:       true,
	ListenAddress: ":8080",
}

// ApplyEnvOverrides loads an optional .env file and lets set variables
// override values read from the config file.
func (cfg *Config) ApplyEnvOverrides() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "loading .env")
	}

	for _, section := range []interface{}{&cfg.DB, &cfg.Etherscan, &cfg.Crawler, &cfg.Server} {
		if err := env.Parse(section); err != nil {
			return errors.Wrap(err, "parsing environment overrides")
		}
	}

	return nil
}

func CheckParameters(cfg *Config) error {
	e := cfg.Etherscan
	if strings.TrimSpace(e.APIKey) == "" {
		return errors.New("etherscan api_key is required")
	}
	if e.BaseURL == "" {
		return errors.New("etherscan base_url must be provided")
	}
	if e.PageSize < 1 || e.PageSize > 10_000 {
		return errors.Errorf("etherscan page_size must be within [1, 10000], got %d", e.PageSize)
	}
	if e.DelayBetweenPagesMs < 0 || e.DelayBetweenPagesMs > 10_000 {
		return errors.Errorf("etherscan delay_between_pages_ms must be within [0, 10000], got %d", e.DelayBetweenPagesMs)
	}
	if e.TimeoutSeconds < 1 || e.TimeoutSeconds > 300 {
		return errors.Errorf("etherscan timeout_seconds must be within [1, 300], got %d", e.TimeoutSeconds)
	}
	if e.RequestsPerSecond <= 0 {
		return errors.New("etherscan requests_per_second should be positive")
	}

	if cfg.Crawler.IntervalMinutes < 1 {
		return errors.New("crawler interval_minutes should be set to a positive integer")
	}
	if cfg.Crawler.InitialDelaySeconds < 0 || cfg.Crawler.CategoryDelayMs < 0 {
		return errors.New("crawler delays must not be negative")
	}

	return nil
}
