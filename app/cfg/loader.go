package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/rss-rules.db" description:"SQLite database file"`
	ChannelsFile string `long:"channels-file" env:"CHANNELS_FILE" description:"YAML file with channels to seed on startup (optional)"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://feeds.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for channel processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	RefreshInterval   int    `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"3600" description:"Default channel refresh interval in seconds"`

	// Optional integrations
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for caching rendered feeds (optional)"`
	CacheTTL       int    `long:"cache-ttl" env:"CACHE_TTL" default:"300" description:"Rendered feed cache TTL in seconds"`
	AMQPURL        string `long:"amqp-url" env:"AMQP_URL" description:"AMQP broker URL for extraction events (optional)"`
	AMQPExchange   string `long:"amqp-exchange" env:"AMQP_EXCHANGE" default:"rss-rules" description:"AMQP exchange name"`
	AMQPRoutingKey string `long:"amqp-routing-key" env:"AMQP_ROUTING_KEY" default:"channel.extracted" description:"AMQP routing key"`
	AMQPQueue      string `long:"amqp-queue" env:"AMQP_QUEUE" default:"channel-extractions" description:"AMQP queue bound to the exchange"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Rules/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads an optional .env file, then parses flags and environment.
// It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := parse(os.Args[1:])
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	return &Cfg{
		DBPath:            raw.DBPath,
		ChannelsFile:      raw.ChannelsFile,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		RefreshInterval:   raw.RefreshInterval,
		RedisAddr:         raw.RedisAddr,
		CacheTTL:          raw.CacheTTL,
		AMQPURL:           raw.AMQPURL,
		AMQPExchange:      raw.AMQPExchange,
		AMQPRoutingKey:    raw.AMQPRoutingKey,
		AMQPQueue:         raw.AMQPQueue,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}, nil
}

func validate(raw *rawCfg) error {
	if raw.DBPath == "" {
		return fmt.Errorf("db path cannot be empty")
	}

	positiveFields := map[string]int{
		"worker count":       raw.WorkerCount,
		"scheduler interval": raw.SchedulerInterval,
		"refresh interval":   raw.RefreshInterval,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	return nil
}

// Set replaces the global configuration. Used by tests and tools that build
// a Cfg without parsing flags.
func Set(c *Cfg) {
	globalCfg = c
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
