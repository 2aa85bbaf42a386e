package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/risk"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"localhost:19092"}, cfg.KafkaBrokers)
	assert.Equal(t, "maritime.events", cfg.KafkaTopicEvents)
	assert.Equal(t, 30*time.Second, cfg.BatchInterval)
	assert.Equal(t, "sqlite", cfg.LedgerBackend)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, risk.DefaultPolicy(), cfg.Policy)
	assert.Equal(t, "supply_chain_map", cfg.SheetMapping)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("BATCH_INTERVAL_SECONDS", "5")
	t.Setenv("RISK_THRESHOLD", "HIGH")
	t.Setenv("BUFFER_DAYS", "3")
	t.Setenv("SCALED_MAX_DAYS", "21")
	t.Setenv("LEDGER_BACKEND", "Redis")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.BatchInterval)
	assert.Equal(t, contracts.RiskHigh, cfg.Policy.Threshold)
	assert.Equal(t, 3*24*time.Hour, cfg.Policy.Buffer)
	assert.Equal(t, 21*24*time.Hour, cfg.Policy.MaxScaled)
	assert.Equal(t, "redis", cfg.LedgerBackend)
	assert.Equal(t, "-100123", cfg.TelegramChatID)
	require.NoError(t, cfg.Policy.Validate())
}

func TestLoadFallsBackOnBadValues(t *testing.T) {
	t.Setenv("BATCH_MAX_EVENTS", "many")
	t.Setenv("RISK_THRESHOLD", "apocalyptic")
	t.Setenv("KAFKA_BROKERS", " , ")

	cfg := Load()

	assert.Equal(t, 500, cfg.BatchMaxEvents)
	assert.Equal(t, contracts.RiskCritical, cfg.Policy.Threshold)
	assert.Equal(t, []string{"localhost:19092"}, cfg.KafkaBrokers)
}
