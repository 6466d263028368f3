package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/germanamz/hostbridge/pkg/navigation"
	"github.com/germanamz/hostbridge/pkg/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
network:
  testnet: true
  api: ${HB_TEST_API}
storage:
  backend: sqlite
  path: /tmp/hostbridge.db
  pool_size: 2
service:
  timeout: 10s
  headers:
    X-Client: hostbridge
realtime:
  reconnect:
    delay: 500ms
    multiplier: 2
    max_delay: 4s
    max_attempts: 10
poll:
  interval: 30s
navigation:
  query_api: true
  back_policy: back
bridge:
  api:
    main_button: true
    emitter: true
  safe_area:
    top: 44
  safe_domains: [holders.io]
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("HB_TEST_API", "https://api.example.com")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Network.Testnet)
	assert.Equal(t, "https://api.example.com", cfg.Endpoints().API)
	assert.Equal(t, "https://stage.holders.io", cfg.Endpoints().App)

	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, 2, cfg.Storage.PoolSize)
	assert.Equal(t, "hostbridge", cfg.Service.Headers["X-Client"])

	timeout, err := cfg.ServiceTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	policy, err := cfg.ReconnectPolicy()
	require.NoError(t, err)
	assert.Equal(t, watcher.ReconnectPolicy{
		Delay:       500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    4 * time.Second,
		MaxAttempts: 10,
	}, policy)

	poll, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, poll)

	assert.Equal(t, navigation.Back, cfg.BackPolicy())
	assert.True(t, cfg.Bridge.API.MainButton)
	assert.True(t, cfg.Bridge.API.Emitter)
	assert.False(t, cfg.Bridge.API.Wallet)
	assert.Equal(t, 44, cfg.Bridge.SafeArea.Top)
	assert.Equal(t, []string{"holders.io"}, cfg.Bridge.SafeDomains)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("network: ["))
	assert.Error(t, err)
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	policy, err := cfg.ReconnectPolicy()
	require.NoError(t, err)
	assert.Equal(t, watcher.DefaultReconnectPolicy(), policy)

	poll, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, poll)

	assert.Equal(t, navigation.Close, cfg.BackPolicy())
	assert.Equal(t, "https://app.holders.io", cfg.Endpoints().App)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown backend", Config{Storage: StorageConfig{Backend: "redis"}}},
		{"file without path", Config{Storage: StorageConfig{Backend: StorageFile}}},
		{"sqlite without path", Config{Storage: StorageConfig{Backend: StorageSQLite}}},
		{"negative pool", Config{Storage: StorageConfig{PoolSize: -1}}},
		{"bad back policy", Config{Navigation: NavigationConfig{BackPolicy: "forward"}}},
		{"bad delay", Config{Realtime: RealtimeConfig{Reconnect: ReconnectConfig{Delay: "soon"}}}},
		{"negative delay", Config{Realtime: RealtimeConfig{Reconnect: ReconnectConfig{Delay: "-1s"}}}},
		{"small multiplier", Config{Realtime: RealtimeConfig{Reconnect: ReconnectConfig{Multiplier: 0.5}}}},
		{"negative attempts", Config{Realtime: RealtimeConfig{Reconnect: ReconnectConfig{MaxAttempts: -1}}}},
		{"bad poll", Config{Poll: PollConfig{Interval: "often"}}},
		{"bad timeout", Config{Service: ServiceConfig{Timeout: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
