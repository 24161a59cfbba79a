package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Contains(t, cfg.Database.DSN, "@tcp(localhost:3306)/marpelink")
	assert.Equal(t, "HLUSD", cfg.Token.Symbol)
	assert.Equal(t, 6, cfg.Token.Decimals)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "@every 5m", cfg.AuditSchedule)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigSqliteAndLists(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "/tmp/ledger.db")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ADMIN_ADDRESSES", "0xABCDEF0000000000000000000000000000000001")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/ledger.db", cfg.Database.DSN)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"0xabcdef0000000000000000000000000000000001"}, cfg.AdminAddresses)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "invalid DB_DRIVER")
	})
	t.Run("decimals", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "sqlite")
		t.Setenv("TOKEN_DECIMALS", "40")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "TOKEN_DECIMALS")
	})
	t.Run("jwt expiry", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "sqlite")
		t.Setenv("JWT_EXPIRATION_MINUTES", "soon")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "JWT_EXPIRATION_MINUTES")
	})
}
