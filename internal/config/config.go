package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Send      SendConfig
	Import    ImportConfig
	Scheduler SchedulerConfig
	Transport TransportConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SendConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

type ImportConfig struct {
	ChunkSize int
}

type SchedulerConfig struct {
	Interval time.Duration
}

type TransportConfig struct {
	Mode           string
	ComposerURL    string
	AutomationURL  string
	AutomationName string
	RatePerSec     float64
}

func LoadAll() (cfg *Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			cfg = nil
			err = fmt.Errorf("config: %v", r)
		}
	}()

	cfg = &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite"),
			URL:    getEnv("DATABASE_URL", "campaigns.db"),
		},
		Send: SendConfig{
			BatchSize:  getEnvInt("SEND_BATCH_SIZE", 10),
			BatchDelay: time.Duration(getEnvInt("SEND_BATCH_DELAY_SECONDS", 5)) * time.Second,
		},
		Import: ImportConfig{
			ChunkSize: getEnvInt("IMPORT_CHUNK_SIZE", 100),
		},
		Scheduler: SchedulerConfig{
			Interval: time.Duration(getEnvInt("SCHED_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Transport: TransportConfig{
			Mode:           getEnv("TRANSPORT_MODE", "simulated"),
			ComposerURL:    os.Getenv("COMPOSER_URL"),
			AutomationURL:  os.Getenv("AUTOMATION_URL"),
			AutomationName: getEnv("AUTOMATION_NAME", "Batch SMS Sender"),
			RatePerSec:     getEnvFloat("COMPOSER_RATE_PER_SEC", 0),
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

func validate(cfg *Config) {
	if cfg.Send.BatchSize <= 0 {
		panic("SEND_BATCH_SIZE must be > 0")
	}
	if cfg.Send.BatchDelay < 0 {
		panic("SEND_BATCH_DELAY_SECONDS must be >= 0")
	}
	if cfg.Import.ChunkSize <= 0 {
		panic("IMPORT_CHUNK_SIZE must be > 0")
	}
	if cfg.Scheduler.Interval <= 0 {
		panic("SCHED_INTERVAL_SECONDS must be > 0")
	}
	switch cfg.Database.Driver {
	case "sqlite", "pgx":
	default:
		panic(fmt.Sprintf("unknown DATABASE_DRIVER: %s", cfg.Database.Driver))
	}
	if cfg.Database.URL == "" {
		panic("missing required env var: DATABASE_URL")
	}
	switch cfg.Transport.Mode {
	case "interactive":
		if cfg.Transport.ComposerURL == "" {
			panic("TRANSPORT_MODE=interactive requires COMPOSER_URL")
		}
	case "automation":
		if cfg.Transport.AutomationURL == "" {
			panic("TRANSPORT_MODE=automation requires AUTOMATION_URL")
		}
	case "simulated":
	default:
		panic(fmt.Sprintf("unknown TRANSPORT_MODE: %s", cfg.Transport.Mode))
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid float for env %s: %s", key, v))
	}
	return f
}
