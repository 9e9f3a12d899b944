package config

import (
	"strings"
	"sync"
	"testing"
	"time"
)

var envMu sync.Mutex

func clearTestEnv(t *testing.T) {
	t.Helper()

	keys := []string{
		"SERVER_ADDRESS",
		"DATABASE_DRIVER",
		"DATABASE_URL",
		"SEND_BATCH_SIZE",
		"SEND_BATCH_DELAY_SECONDS",
		"IMPORT_CHUNK_SIZE",
		"SCHED_INTERVAL_SECONDS",
		"TRANSPORT_MODE",
		"COMPOSER_URL",
		"COMPOSER_RATE_PER_SEC",
		"AUTOMATION_URL",
		"AUTOMATION_NAME",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"REDIS_TTL_SECONDS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadAll_Defaults_NoRedis(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected Server.Address default: %q", cfg.Server.Address)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected Database.Driver default: %q", cfg.Database.Driver)
	}
	if cfg.Database.URL != "campaigns.db" {
		t.Fatalf("unexpected Database.URL default: %q", cfg.Database.URL)
	}
	if cfg.Send.BatchSize != 10 {
		t.Fatalf("unexpected Send.BatchSize default: %d", cfg.Send.BatchSize)
	}
	if cfg.Send.BatchDelay != 5*time.Second {
		t.Fatalf("unexpected Send.BatchDelay default: %v", cfg.Send.BatchDelay)
	}
	if cfg.Import.ChunkSize != 100 {
		t.Fatalf("unexpected Import.ChunkSize default: %d", cfg.Import.ChunkSize)
	}
	if cfg.Scheduler.Interval != 60*time.Second {
		t.Fatalf("unexpected Scheduler.Interval default: %v", cfg.Scheduler.Interval)
	}
	if cfg.Transport.Mode != "simulated" {
		t.Fatalf("unexpected Transport.Mode default: %q", cfg.Transport.Mode)
	}
	if cfg.Transport.AutomationName != "Batch SMS Sender" {
		t.Fatalf("unexpected Transport.AutomationName default: %q", cfg.Transport.AutomationName)
	}

	if cfg.Redis.Enabled {
		t.Fatalf("expected Redis disabled when REDIS_ADDR not set")
	}
}

func TestLoadAll_WithRedis(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TTL_SECONDS", "42")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if !cfg.Redis.Enabled {
		t.Fatalf("expected Redis enabled")
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected Redis.Address: %q", cfg.Redis.Address)
	}
	if cfg.Redis.Password != "secret" {
		t.Fatalf("unexpected Redis.Password: %q", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("unexpected Redis.DB: %d", cfg.Redis.DB)
	}
	if cfg.Redis.TTL != 42*time.Second {
		t.Fatalf("unexpected Redis.TTL: %v", cfg.Redis.TTL)
	}
}

func TestLoadAll_TransportModes(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	t.Run("interactive requires COMPOSER_URL", func(t *testing.T) {
		clearTestEnv(t)

		t.Setenv("TRANSPORT_MODE", "interactive")

		_, err := LoadAll()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "COMPOSER_URL") {
			t.Fatalf("expected error mentioning COMPOSER_URL, got: %v", err)
		}
	})

	t.Run("automation requires AUTOMATION_URL", func(t *testing.T) {
		clearTestEnv(t)

		t.Setenv("TRANSPORT_MODE", "automation")

		_, err := LoadAll()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "AUTOMATION_URL") {
			t.Fatalf("expected error mentioning AUTOMATION_URL, got: %v", err)
		}
	})

	t.Run("interactive with composer", func(t *testing.T) {
		clearTestEnv(t)

		t.Setenv("TRANSPORT_MODE", "interactive")
		t.Setenv("COMPOSER_URL", "http://localhost:9100")
		t.Setenv("COMPOSER_RATE_PER_SEC", "2.5")

		cfg, err := LoadAll()
		if err != nil {
			t.Fatalf("LoadAll() error: %v", err)
		}
		if cfg.Transport.ComposerURL != "http://localhost:9100" {
			t.Fatalf("unexpected ComposerURL: %q", cfg.Transport.ComposerURL)
		}
		if cfg.Transport.RatePerSec != 2.5 {
			t.Fatalf("unexpected RatePerSec: %v", cfg.Transport.RatePerSec)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		clearTestEnv(t)

		t.Setenv("TRANSPORT_MODE", "carrier-pigeon")

		_, err := LoadAll()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "TRANSPORT_MODE") {
			t.Fatalf("expected error mentioning TRANSPORT_MODE, got: %v", err)
		}
	})
}

func TestLoadAll_InvalidInts(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"invalid SEND_BATCH_SIZE", "SEND_BATCH_SIZE", "abc"},
		{"invalid SEND_BATCH_DELAY_SECONDS", "SEND_BATCH_DELAY_SECONDS", "nope"},
		{"invalid IMPORT_CHUNK_SIZE", "IMPORT_CHUNK_SIZE", "x"},
		{"invalid SCHED_INTERVAL_SECONDS", "SCHED_INTERVAL_SECONDS", "nope"},
		{"invalid COMPOSER_RATE_PER_SEC", "COMPOSER_RATE_PER_SEC", "fast"},
		{"invalid REDIS_DB", "REDIS_DB", "bad"},
		{"invalid REDIS_TTL_SECONDS", "REDIS_TTL_SECONDS", "bad"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)

			if strings.HasPrefix(tc.key, "REDIS_") {
				t.Setenv("REDIS_ADDR", "localhost:6379")
			}

			t.Setenv(tc.key, tc.val)

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.key, err)
			}
		})
	}
}

func TestLoadAll_ValidationFailures(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"batch size <= 0", "SEND_BATCH_SIZE", "0", "SEND_BATCH_SIZE"},
		{"negative batch delay", "SEND_BATCH_DELAY_SECONDS", "-1", "SEND_BATCH_DELAY_SECONDS"},
		{"chunk size <= 0", "IMPORT_CHUNK_SIZE", "0", "IMPORT_CHUNK_SIZE"},
		{"interval <= 0", "SCHED_INTERVAL_SECONDS", "0", "SCHED_INTERVAL_SECONDS"},
		{"unknown driver", "DATABASE_DRIVER", "oracle", "DATABASE_DRIVER"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)

			t.Setenv(tc.key, tc.val)

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.want, err)
			}
		})
	}
}
