// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	Host      string
	Port      int
	DBPath    string
	NodeID    string
	LogLevel  string
	LogPretty bool
	DevMode   bool

	// AgentModelEndpoint is read for deployments that run a model-backed
	// agent next to the governor. The governor itself never calls it.
	AgentModelEndpoint string

	// CORS origins also used as websocket origin patterns
	AllowedOrigins []string

	Budget   BudgetConfig
	Telegram TelegramConfig
	Kafka    KafkaConfig
	Backup   BackupConfig

	MaintenanceSchedule string
}

// BudgetConfig holds the per-transaction execution caps
type BudgetConfig struct {
	MaxSteps         int
	MaxReasonerCalls int
	MaxSkillCalls    int
}

// TelegramConfig holds the human escalation channel settings
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// Enabled reports whether escalations are delivered to Telegram
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// KafkaConfig holds the risk event bus settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether risk events are published to Kafka
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// BackupConfig holds S3-compatible snapshot upload settings
type BackupConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // empty for AWS, set for R2/MinIO
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
	RetentionDays   int // 0 keeps every snapshot
}

// Enabled reports whether database snapshots are uploaded
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	chatID, err := getEnvAsInt64("TELEGRAM_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:               getEnv("RISK_GOVERNOR_HOST", "127.0.0.1"),
		Port:               getEnvAsInt("RISK_GOVERNOR_PORT", 8090),
		DBPath:             getEnv("RISK_GOVERNOR_DB", "./risk_governor.db"),
		NodeID:             getEnv("RISK_GOVERNOR_NODE_ID", "risk-governor"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvAsBool("LOG_PRETTY", false),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		AgentModelEndpoint: getEnv("AGENT_MODEL_ENDPOINT", ""),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		Budget: BudgetConfig{
			MaxSteps:         getEnvAsInt("BUDGET_MAX_STEPS", 8),
			MaxReasonerCalls: getEnvAsInt("BUDGET_MAX_REASONER_CALLS", 12),
			MaxSkillCalls:    getEnvAsInt("BUDGET_MAX_SKILL_CALLS", 24),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_RISK_TOPIC", "risk-events"),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Prefix:          strings.Trim(getEnv("BACKUP_S3_PREFIX", "risk-governor"), "/"),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 */30 * * * *"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid RISK_GOVERNOR_PORT: %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("RISK_GOVERNOR_DB is required")
	}
	if c.Budget.MaxSteps < 1 || c.Budget.MaxReasonerCalls < 1 || c.Budget.MaxSkillCalls < 1 {
		return fmt.Errorf("budget caps must be positive (steps=%d reasoner=%d skill=%d)",
			c.Budget.MaxSteps, c.Budget.MaxReasonerCalls, c.Budget.MaxSkillCalls)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == 0) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_RISK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative")
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "") != (c.Backup.SecretAccessKey == "") {
		return fmt.Errorf("BACKUP_S3_ACCESS_KEY_ID and BACKUP_S3_SECRET_ACCESS_KEY must be set together")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.MaintenanceSchedule); err != nil {
		return fmt.Errorf("invalid MAINTENANCE_SCHEDULE %q: %w", c.MaintenanceSchedule, err)
	}
	if c.Backup.Enabled() {
		if _, err := parser.Parse(c.Backup.Schedule); err != nil {
			return fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", c.Backup.Schedule, err)
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
