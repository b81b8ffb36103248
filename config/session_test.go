package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSession_EmptyPathIsDefault(t *testing.T) {
	cfg, err := LoadSession("  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultBusURL, cfg.URL)
	assert.Equal(t, "hammer", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
}

func TestLoadSession_JSON5(t *testing.T) {
	path := writeFile(t, t.TempDir(), "session.json5", `{
  // local broker
  url: 'nats://10.0.0.1:4222',
  servers: ["nats://10.0.0.2:4222",],
  name: "bench",
  connect_timeout: "2s",
  tls: { enabled: true, ca_file: "/etc/ca.pem" },
}`)

	cfg, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://10.0.0.1:4222", cfg.URL)
	assert.Equal(t, []string{"nats://10.0.0.2:4222"}, cfg.Servers)
	assert.Equal(t, "bench", cfg.Name)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, "/etc/ca.pem", cfg.TLS.CAFile)
	assert.Equal(t, "nats://10.0.0.1:4222,nats://10.0.0.2:4222", cfg.ServerURLs())
}

func TestLoadSession_JSON5CommentMarkersInStrings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "session.json5", `{
  url: 'nats://127.0.0.1:4222', // primary
  name: 'bench /* eu */',
  user: 'it\'s',
}`)

	cfg, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, "bench /* eu */", cfg.Name)
	assert.Equal(t, "it's", cfg.User)
}

func TestLoadSession_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "session.yaml", `
url: "nats://broker:4222"
user: "alice"
password: "secret"
`)

	cfg, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://broker:4222", cfg.URL)
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 60, cfg.MaxReconnects)
}

func TestLoadSession_Errors(t *testing.T) {
	_, err := LoadSession("/does/not/exist.json5")
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "broken.json5", `{url: `)
	_, err = LoadSession(path)
	assert.Error(t, err)

	path = writeFile(t, t.TempDir(), "empty.json", `{"url": ""}`)
	_, err = LoadSession(path)
	assert.Error(t, err)
}
