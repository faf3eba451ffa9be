// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Registry.NocWindowDays)
	assert.Equal(t, 365, cfg.Registry.RegistrationTermDays)
	assert.Equal(t, 10, cfg.Registry.AutoApprovalDelayMinutes)
	assert.Equal(t, "America/Vancouver", cfg.Registry.LegislativeTimezone)
	assert.Equal(t, "strr.email", cfg.Kafka.EmailTopic)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 100.0, cfg.Pay.HostFee)
	assert.Equal(t, 1500.0, cfg.Pay.PlatformFee)
	assert.Equal(t, 4, cfg.Jobs.ValidatorWorkers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOC_WINDOW_DAYS", "14")
	t.Setenv("PAY_HOST_FEE", "250.50")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Registry.NocWindowDays)
	assert.Equal(t, 250.50, cfg.Pay.HostFee)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: "development",
			JWT:         JWTConfig{SecretKey: "test-secret"},
			Database:    DatabaseConfig{Password: "test"},
			Registry: RegistryConfig{
				NocWindowDays:       8,
				LegislativeTimezone: "America/Vancouver",
			},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Environment = "production"
	cfg.JWT.SecretKey = "your-secret-key-change-in-production"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Environment = "production"
	cfg.Database.Password = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Registry.LegislativeTimezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Registry.NocWindowDays = 0
	assert.Error(t, cfg.Validate())
}

func TestLegislativeLocation(t *testing.T) {
	cfg := &Config{Registry: RegistryConfig{LegislativeTimezone: "America/Vancouver"}}
	assert.Equal(t, "America/Vancouver", cfg.LegislativeLocation().String())
}
