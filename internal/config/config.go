package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Journal                   JournalConfig
	Kafka                     KafkaConfig
	Token                     TokenConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	EscrowAddress             string
	AuditSchedule             string
	AdminAddresses            []string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	Path     string
	DSN      string
}

// JournalConfig holds the receipt journal location
type JournalConfig struct {
	Path string
}

// KafkaConfig holds event fan-out settings. An empty broker list disables Kafka.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// TokenConfig describes the mock stablecoin
type TokenConfig struct {
	Symbol       string
	Decimals     int
	FaucetAmount string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv("DB_HOST", "localhost"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "marpelink"),
		Path:     getEnv("DB_PATH", "marpelink.db"),
	}

	// Build DSN (Data Source Name) for the selected driver
	switch dbConfig.Driver {
	case "mysql":
		dbConfig.Port = getEnv("DB_PORT", "3306")
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "postgres":
		dbConfig.Port = getEnv("DB_PORT", "5432")
		dbConfig.DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			dbConfig.Host, dbConfig.Username, dbConfig.Password, dbConfig.Name, dbConfig.Port)
	case "sqlite":
		dbConfig.DSN = dbConfig.Path
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: expected mysql, postgres or sqlite", dbConfig.Driver)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	decimals, err := strconv.Atoi(getEnv("TOKEN_DECIMALS", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_DECIMALS: %w", err)
	}
	if decimals < 0 || decimals > 18 {
		return nil, fmt.Errorf("invalid TOKEN_DECIMALS: %d out of range", decimals)
	}

	return &Config{
		Port:             getEnv("PORT", "3001"),
		Origin:           getEnv("ORIGIN", "http://localhost:5173"),
		Environment:      getEnv("NODE_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		JWTSecret:        getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:         dbConfig,
		Journal: JournalConfig{
			Path: getEnv("JOURNAL_PATH", "data/journal"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "healthlink_events"),
		},
		Token: TokenConfig{
			Symbol:       getEnv("TOKEN_SYMBOL", "HLUSD"),
			Decimals:     decimals,
			FaucetAmount: getEnv("FAUCET_AMOUNT", "10000"),
		},
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		EscrowAddress:             strings.ToLower(getEnv("ESCROW_ADDRESS", "0x000000000000000000000000000000000000e5c0")),
		AuditSchedule:             getEnv("AUDIT_SCHEDULE", "@every 5m"),
		AdminAddresses:            lowerAll(splitList(getEnv("ADMIN_ADDRESSES", ""))),
	}, nil
}

// IsProduction reports whether the server runs with NODE_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	for i, s := range in {
		in[i] = strings.ToLower(s)
	}
	return in
}
