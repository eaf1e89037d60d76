package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig Postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN lib/pq key=value DSN
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig settings KV + audit stream
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

// MQTTConfig workflow notification broker (disabled by default)
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// S3Config backup archive bucket; empty Bucket disables archiving
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// Config qms-data (HTTP API) configuration
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	S3        S3Config
	Log       struct {
		Level  string
		Format string
	}
	Workflow struct {
		AutoAssignTraining bool
		TrainingDueDays    int
		SeedDemo           bool
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// DB is opt-in; without it the service runs on the in-memory store.
	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "qms")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Redis.Stream = getEnv("REDIS_EVENT_STREAM", "qms:events")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "qms-data")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TopicPrefix = strings.TrimSuffix(getEnv("MQTT_TOPIC_PREFIX", "qms/notifications"), "/")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.S3.Bucket = getEnv("S3_BUCKET", "")
	cfg.S3.Region = getEnv("S3_REGION", "us-east-1")
	cfg.S3.BaseEndpoint = getEnv("S3_BASE_ENDPOINT", "")
	cfg.S3.AccessKey = getEnv("S3_ACCESS_KEY", "")
	cfg.S3.SecretKey = getEnv("S3_SECRET_KEY", "")
	cfg.S3.Prefix = strings.Trim(getEnv("S3_PREFIX", "backups"), "/")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Workflow.AutoAssignTraining = getEnv("AUTO_ASSIGN_TRAINING", "true") == "true"
	cfg.Workflow.TrainingDueDays = parseInt(getEnv("TRAINING_DUE_DAYS", "14"), 14)
	cfg.Workflow.SeedDemo = getEnv("SEED_DEMO", "true") == "true"

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
