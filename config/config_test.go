package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.toml", "")

	require.NoError(t, Load(path))
	c := Get()

	assert.Equal(t, "@every 60s", c.RiskMonitor.EvaluateSchedule)
	assert.True(t, c.RiskMonitor.AlertMonitorEnabled)
	assert.Equal(t, int64(900), c.RiskMonitor.DefaultFrequency)
	assert.Equal(t, -25.0, c.RiskLevels.Low)
	assert.Equal(t, -50.0, c.RiskLevels.Medium)
	assert.Equal(t, -75.0, c.RiskLevels.High)
	assert.Equal(t, "risk.alert.fired", c.NATS.AlertSubject)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.toml", `
[risk_monitor]
evaluate_schedule = "*/5 * * * *"
alert_monitor_enabled = false
price_assets = ["BTC"]

[risk_levels]
low = -20.0
medium = -40.0
high = -60.0

[nats]
alert_subject = "custom.alerts"
`)

	require.NoError(t, Load(path))
	c := Get()

	assert.Equal(t, "*/5 * * * *", c.RiskMonitor.EvaluateSchedule)
	assert.False(t, c.RiskMonitor.AlertMonitorEnabled)
	assert.Equal(t, []string{"BTC"}, c.RiskMonitor.PriceAssets)
	assert.Equal(t, -40.0, c.RiskLevels.Medium)
	assert.Equal(t, "custom.alerts", c.NATS.AlertSubject)
	// 未配置的字段保留默认值
	assert.Equal(t, "risk.pass.summary", c.NATS.MetricsSubject)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.toml", "[risk_monitor\n")
	assert.Error(t, Load(path))

	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.toml", `
[mysql]
dsn = "file-dsn"
`)
	envFile := writeFile(t, dir, ".env", "RISK_NATS_ENDPOINT=nats://env:4222\n")

	t.Setenv(EnvMySQLDSN, "env-dsn")
	t.Setenv(EnvNATSEndpoint, "")
	os.Unsetenv(EnvNATSEndpoint)

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	require.NoError(t, Load(path))

	c := Get()
	assert.Equal(t, "env-dsn", c.MySQL.DSN)
	assert.Equal(t, "nats://env:4222", c.NATS.Endpoint)
}

func TestReloadIfNeeded(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.toml", "[risk_monitor]\ndefault_frequency = 60\n")
	require.NoError(t, Load(path))
	assert.Equal(t, int64(60), Get().RiskMonitor.DefaultFrequency)

	writeFile(t, dir, "cfg.toml", "[risk_monitor]\ndefault_frequency = 120\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	reloadIfNeeded()
	assert.Equal(t, int64(120), Get().RiskMonitor.DefaultFrequency)
}

func TestLoad_ValidationKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.toml", "[risk_monitor]\ndefault_frequency = 60\n")
	require.NoError(t, Load(path))

	bad := writeFile(t, dir, "bad.toml", "[risk_monitor]\nevaluate_schedule = \"\"\ndefault_frequency = -1\n")
	err := Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluate_schedule")
	assert.Contains(t, err.Error(), "default_frequency")

	assert.Equal(t, int64(60), Get().RiskMonitor.DefaultFrequency)
}

func TestValidate(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	c.RiskMonitor.PriceWSURL = ""
	assert.Error(t, c.Validate())

	c.RiskMonitor.PriceFeedEnabled = false
	assert.NoError(t, c.Validate())

	c.MySQL.ProxyEnabled = true
	c.MySQL.ProxyAddr = ""
	assert.Error(t, c.Validate())
}

func TestOnReload(t *testing.T) {
	var got []int64
	OnReload(func(c *Config) { got = append(got, c.RiskMonitor.DefaultFrequency) })

	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.toml", "[risk_monitor]\ndefault_frequency = 30\n")
	require.NoError(t, Load(path))
	assert.Equal(t, int64(30), got[len(got)-1])
}

func TestInitStop(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.toml", "")
	require.NoError(t, InitWithInterval(path, 10*time.Millisecond))
	require.NoError(t, InitWithInterval(path, 10*time.Millisecond))
	Stop()
	Stop()
}
