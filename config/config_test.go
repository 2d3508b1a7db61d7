package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ValidateBasic())

	assert.Equal(t, "tcp://127.0.0.1:26658", cfg.ProxyApp)
	assert.Equal(t, 1<<20, cfg.ReadBufferSize)
	assert.Equal(t, 10, cfg.Lanes.MempoolQueueSize)
	assert.Equal(t, 100, cfg.Lanes.InfoQueueSize)
	assert.False(t, cfg.RPC.IsEnabled())

	cfg.SetRoot("/foo")
	assert.Equal(t, filepath.Join("/foo", "data", "abci.height"), cfg.HeightFilePath())
	assert.Equal(t, filepath.Join("/foo", "data"), cfg.DBDir())
	assert.Equal(t, filepath.Join("/foo", "config", "config.toml"), cfg.ConfigFile())

	cfg.HeightFile = "/var/lib/abci.height"
	assert.Equal(t, "/var/lib/abci.height", cfg.HeightFilePath())
}

func TestConfigValidateBasic(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero read buffer", func(c *Config) { c.ReadBufferSize = 0 }},
		{"unknown backend", func(c *Config) { c.HeightBackend = "rocksdb" }},
		{"empty height file", func(c *Config) { c.HeightFile = "" }},
		{"bad proxy protocol", func(c *Config) { c.ProxyApp = "udp://127.0.0.1:1" }},
		{"empty mempool queue", func(c *Config) { c.Lanes.MempoolQueueSize = 0 }},
		{"negative info queue", func(c *Config) { c.Lanes.InfoQueueSize = -1 }},
		{"zero rate", func(c *Config) { c.Lanes.InfoRateLimit = 0 }},
		{"zero burst", func(c *Config) { c.Lanes.InfoRateBurst = 0 }},
		{"bad rpc protocol", func(c *Config) { c.RPC.ListenAddress = "http://127.0.0.1:1" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := TestConfig()
			require.NoError(t, cfg.ValidateBasic())
			tc.modify(cfg)
			assert.Error(t, cfg.ValidateBasic())
		})
	}
}

func TestEnsureRootWritesReadableConfig(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig().SetRoot(root)
	cfg.HeightBackend = HeightBackendGoLevelDB
	cfg.Lanes.InfoRateLimit = 25
	cfg.RPC.ListenAddress = "tcp://127.0.0.1:26660"

	EnsureRoot(cfg)
	assert.DirExists(t, filepath.Join(root, "config"))
	assert.DirExists(t, filepath.Join(root, "data"))

	bz, err := ioutil.ReadFile(cfg.ConfigFile())
	require.NoError(t, err)
	assert.Contains(t, string(bz), `height_backend = "goleveldb"`)

	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile())
	require.NoError(t, v.ReadInConfig())

	loaded := DefaultConfig()
	require.NoError(t, v.Unmarshal(loaded))
	assert.Equal(t, HeightBackendGoLevelDB, loaded.HeightBackend)
	assert.Equal(t, 25.0, loaded.Lanes.InfoRateLimit)
	assert.Equal(t, "tcp://127.0.0.1:26660", loaded.RPC.ListenAddress)
	assert.Equal(t, filepath.Join("data", "abci.height"), loaded.HeightFile)
	require.NoError(t, loaded.ValidateBasic())

	// an existing file is left alone
	cfg.LogLevel = "error"
	EnsureRoot(cfg)
	again, err := ioutil.ReadFile(cfg.ConfigFile())
	require.NoError(t, err)
	assert.Equal(t, bz, again)
}
