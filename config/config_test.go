package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
amber:
  token: abc123
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "./data/billing.db", c.Database.Path)
	assert.Equal(t, "Australia/Sydney", c.Amber.Timezone)
	assert.Equal(t, 1, c.Billing.StartDay)
	assert.Equal(t, time.Hour, time.Duration(c.Refresh.Interval))
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
database:
  path: /tmp/test.db
amber:
  token: abc123
  base_url: http://localhost:8000/v1
  timezone: Australia/Brisbane
  sites:
    - site-1
    - site-2
billing:
  start_day: 20
  surcharge_cents: 104.5
  subscription: 12.95
refresh:
  interval: 30m
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, []string{"site-1", "site-2"}, c.Amber.Sites)
	assert.Equal(t, 20, c.Billing.StartDay)
	assert.Equal(t, 30*time.Minute, time.Duration(c.Refresh.Interval))

	settings := c.DefaultSettings()
	assert.Equal(t, "104.5", settings.SurchargeCents.String())
	assert.Equal(t, "12.95", settings.Subscription.String())
	assert.Equal(t, "Australia/Brisbane", c.Location().String())
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv("AMBER_TOKEN", "env-token")
	path := writeConfig(t, `
amber:
  token: file-token
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", c.Amber.Token)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	t.Setenv("AMBER_TOKEN", "")
	cases := map[string]string{
		"missing token":          `server: {addr: ":8080"}`,
		"start day out of range": "amber: {token: x}\nbilling: {start_day: 29}",
		"negative surcharge":     "amber: {token: x}\nbilling: {surcharge_cents: -1}",
		"bad timezone":           "amber: {token: x, timezone: Mars/Olympus}",
		"interval too short":     "amber: {token: x}\nrefresh: {interval: 5s}",
		"unparseable interval":   "amber: {token: x}\nrefresh: {interval: soon}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
