package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
service_name = "retail"

[database]
driver = "sqlite"
lock_timeout_ms = 2500

[auth]
jwt_secret = "s3cret"

[inventory]
oversell_policy = "reject"

[order]
restock_on_cancel = false
timezone = "America/Bogota"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaultsAndFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2500, cfg.Database.LockTimeoutMs)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "reject", cfg.Inventory.OversellPolicy)
	assert.False(t, cfg.Order.RestockOnCancel)
	assert.Equal(t, "order.events", cfg.Kafka.OrderTopic)

	loc, err := cfg.Order.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Bogota", loc.String())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("APP_HTTP_PORT", "9191")
	t.Setenv("APP_INVENTORY_OVERSELL_POLICY", "clamp")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.HTTP.Port)
	assert.Equal(t, "clamp", cfg.Inventory.OversellPolicy)
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	_, err := Load(writeConfig(t, sample+"\n[rate_limit]\nenabled = true\n"))
	require.NoError(t, err)

	bad := `
service_name = "retail"
[database]
driver = "sqlite"
[auth]
jwt_secret = "x"
[inventory]
oversell_policy = "maybe"
`
	_, err = Load(writeConfig(t, bad))
	assert.ErrorContains(t, err, "oversell_policy")
}

func TestValidateRequiresDSNForMySQL(t *testing.T) {
	body := `
service_name = "retail"
[database]
driver = "mysql"
[auth]
jwt_secret = "x"
`
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "DSN")
}

func TestValidateOutboxNeedsKafka(t *testing.T) {
	_, err := Load(writeConfig(t, sample+"\n[outbox]\nenabled = true\n"))
	assert.ErrorContains(t, err, "kafka.enabled")

	cfg, err := Load(writeConfig(t, sample+"\n[outbox]\nenabled = true\n[kafka]\nenabled = true\nbrokers = [\"localhost:9092\"]\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Outbox.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}
