package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values_test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	t.Setenv(configFilePathENV, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Broker.Port != 7497 || cfg.Broker.ClientID != 2 {
		t.Fatalf("broker defaults = %+v", cfg.Broker)
	}
	if cfg.Trading.OrderQty != 20000 {
		t.Fatalf("order qty = %v", cfg.Trading.OrderQty)
	}
	if cfg.Trading.FillTimeout != 10*time.Second {
		t.Fatalf("fill timeout = %v", cfg.Trading.FillTimeout)
	}
	if cfg.Reconcile.MaxRetries != 5 || cfg.Reconcile.RetryDelay != 3*time.Second {
		t.Fatalf("reconcile = %+v", cfg.Reconcile)
	}
}

func TestNewConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
broker:
  host: 10.0.0.5
  port: 4002
trading:
  symbols: [EURUSD, USDJPY]
  target_pips: 7
  fill_timeout: 15s
  workers: 4
`)
	t.Setenv(configFilePathENV, path)
	t.Setenv("BROKER_PORT", "4001")
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/audit")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Broker.Host != "10.0.0.5" {
		t.Fatalf("host = %s", cfg.Broker.Host)
	}
	if cfg.Broker.Port != 4001 {
		t.Fatalf("env override lost, port = %d", cfg.Broker.Port)
	}
	if cfg.Trading.TargetPips != 7 || cfg.Trading.StopPips != 5 {
		t.Fatalf("pips = %v/%v", cfg.Trading.TargetPips, cfg.Trading.StopPips)
	}
	if cfg.Trading.FillTimeout != 15*time.Second || cfg.Trading.Workers != 4 {
		t.Fatalf("trading = %+v", cfg.Trading)
	}
	if len(cfg.Trading.Symbols) != 2 {
		t.Fatalf("symbols = %v", cfg.Trading.Symbols)
	}
	if cfg.DB != "postgres://u:p@localhost:5432/audit" {
		t.Fatalf("dsn = %q", cfg.DB)
	}
}

func TestNewConfigValidation(t *testing.T) {
	path := writeConfig(t, `
trading:
  order_qty: 0
`)
	t.Setenv(configFilePathENV, path)
	if _, err := NewConfig(); err == nil {
		t.Fatal("expected validation error")
	}
}
