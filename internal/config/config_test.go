package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "127.0.0.1:8090", cfg.Addr())
	assert.Equal(t, "./risk_governor.db", cfg.DBPath)
	assert.Equal(t, "risk-governor", cfg.NodeID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BudgetConfig{MaxSteps: 8, MaxReasonerCalls: 12, MaxSkillCalls: 24}, cfg.Budget)
	assert.Equal(t, "risk-events", cfg.Kafka.Topic)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Telegram.Enabled())
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("RISK_GOVERNOR_HOST", "0.0.0.0")
	t.Setenv("RISK_GOVERNOR_PORT", "9100")
	t.Setenv("RISK_GOVERNOR_DB", "/tmp/rg.db")
	t.Setenv("BUDGET_MAX_STEPS", "3")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BACKUP_S3_BUCKET", "backups")
	t.Setenv("BACKUP_S3_PREFIX", "/gov/")
	t.Setenv("AGENT_MODEL_ENDPOINT", "http://model:8000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
	assert.Equal(t, "/tmp/rg.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.Budget.MaxSteps)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, "gov", cfg.Backup.Prefix)
	assert.Equal(t, "http://model:8000", cfg.AgentModelEndpoint)
}

func TestLoad_InvalidChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load()
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                8090,
			DBPath:              "x.db",
			Budget:              BudgetConfig{MaxSteps: 8, MaxReasonerCalls: 12, MaxSkillCalls: 24},
			Kafka:               KafkaConfig{Topic: "risk-events"},
			Backup:              BackupConfig{Schedule: "0 0 3 * * *"},
			MaintenanceSchedule: "0 */30 * * * *",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, wantErr: "RISK_GOVERNOR_PORT"},
		{name: "missing db", mutate: func(c *Config) { c.DBPath = "" }, wantErr: "RISK_GOVERNOR_DB"},
		{name: "zero budget", mutate: func(c *Config) { c.Budget.MaxSkillCalls = 0 }, wantErr: "budget caps"},
		{name: "token without chat", mutate: func(c *Config) { c.Telegram.BotToken = "t" }, wantErr: "TELEGRAM"},
		{name: "brokers without topic", mutate: func(c *Config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.Topic = ""
		}, wantErr: "KAFKA_RISK_TOPIC"},
		{name: "half credentials", mutate: func(c *Config) {
			c.Backup.Bucket = "b"
			c.Backup.AccessKeyID = "id"
		}, wantErr: "BACKUP_S3"},
		{name: "bad maintenance cron", mutate: func(c *Config) { c.MaintenanceSchedule = "nope" }, wantErr: "MAINTENANCE_SCHEDULE"},
		{name: "bad backup cron ignored when disabled", mutate: func(c *Config) { c.Backup.Schedule = "nope" }},
		{name: "bad backup cron", mutate: func(c *Config) {
			c.Backup.Bucket = "b"
			c.Backup.Schedule = "nope"
		}, wantErr: "BACKUP_SCHEDULE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
