package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
feed:
  websocket_url: wss://example.test/ws
  symbols:
    - AAPL
    - MSFT
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d", cfg.Server.Port)
	}
	if cfg.Feed.ReconnectDelay != 5*time.Second {
		t.Errorf("reconnect delay default: got %v", cfg.Feed.ReconnectDelay)
	}
	if cfg.Aggregation.Interval != "1m" {
		t.Errorf("aggregation interval default: got %s", cfg.Aggregation.Interval)
	}
	if cfg.Analysis.TradingInterval != "5m" || cfg.Analysis.HigherInterval != "30m" {
		t.Errorf("analysis interval defaults: got %s/%s",
			cfg.Analysis.TradingInterval, cfg.Analysis.HigherInterval)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics defaults: got %v %s", cfg.Metrics.Enabled, cfg.Metrics.Path)
	}
	if cfg.Kafka.GroupID != "drummond-lab" {
		t.Errorf("kafka group default: got %s", cfg.Kafka.GroupID)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
server:
  port: 9999
aggregation:
  interval: 5m
analysis:
  trading_interval: 30m
  higher_interval: 1d
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server port: got %d", cfg.Server.Port)
	}
	if cfg.Aggregation.Interval != "5m" {
		t.Errorf("aggregation interval: got %s", cfg.Aggregation.Interval)
	}
}

func TestLoad_MissingSymbols(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
feed:
  websocket_url: wss://example.test/ws
`))
	if err == nil {
		t.Fatal("expected validation error for empty symbols")
	}
}

func TestLoad_BadInterval(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
aggregation:
  interval: 7m
`))
	if err == nil {
		t.Fatal("expected validation error for unknown interval")
	}
}

func TestLoad_SameAnalysisIntervals(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
analysis:
  trading_interval: 5m
  higher_interval: 5m
`))
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected interval conflict error, got %v", err)
	}
}

func TestLoad_KafkaEnabledNeedsBrokers(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
kafka:
  enabled: true
`))
	if err == nil || !strings.Contains(err.Error(), "brokers") {
		t.Fatalf("expected broker validation error, got %v", err)
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Setenv("FEED_API_KEY", "secret-key")
	t.Setenv("SYMBOLS", "TSLA,NVDA")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}

	if cfg.Feed.APIKey != "secret-key" {
		t.Errorf("api key override: got %s", cfg.Feed.APIKey)
	}
	if len(cfg.Feed.Symbols) != 2 || cfg.Feed.Symbols[0] != "TSLA" {
		t.Errorf("symbols override: got %v", cfg.Feed.Symbols)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("kafka override: got %v %v", cfg.Kafka.Enabled, cfg.Kafka.Brokers)
	}
}
