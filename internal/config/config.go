package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	ServicePort string
	Env         string
	LogLevel    string

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	RabbitMQHost string
	RabbitMQPort string
	RabbitMQUser string
	RabbitMQPass string

	WSHost string
	WSPort string

	OutboxBatchSize    int
	OutboxPollInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "orders_db"),
		DBUser:     getEnv("DB_USER", "microservice"),
		DBPassword: getEnv("DB_PASSWORD", "password"),

		RabbitMQHost: getEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort: getEnv("RABBITMQ_PORT", "5672"),
		RabbitMQUser: getEnv("RABBITMQ_USER", "admin"),
		RabbitMQPass: getEnv("RABBITMQ_PASS", "password"),

		WSHost: getEnv("WS_HOST", "0.0.0.0"),
		WSPort: getEnv("WS_PORT", "8080"),

		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 10),
		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", time.Second),
	}
}

// DatabaseURL assembles a pgx connection string from the DB_* variables.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// BrokerURL assembles an AMQP connection string from the RABBITMQ_* variables.
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.RabbitMQUser, c.RabbitMQPass, c.RabbitMQHost, c.RabbitMQPort)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
