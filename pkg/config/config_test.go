package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/transformations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/var/lib/clusterupgrade", cfg.DataDir)
	assert.Equal(t, ":8090", cfg.APIAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/upgrade
api_addr: 127.0.0.1:9000
read_only: true
provision_delay: 2s
log:
  level: debug
  json: true
transformations:
  cluster:
    "9.0": [dns_list]
  vip:
    "9.0": []
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/upgrade", cfg.DataDir)
	assert.Equal(t, "127.0.0.1:9000", cfg.APIAddr)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 2*time.Second, cfg.ProvisionDelay)
	logging, err := cfg.Logging()
	require.NoError(t, err)
	assert.Equal(t, log.Config{Level: log.DebugLevel, JSONOutput: true}, logging)
	assert.Equal(t, transformations.Settings{
		"cluster": {"9.0": {"dns_list"}},
		"vip":     {"9.0": {}},
	}, cfg.Transformations)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "api_addr: :9999\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.APIAddr)
	assert.Equal(t, "/var/lib/clusterupgrade", cfg.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Nil(t, cfg.Transformations)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "data_dir: [",
			wantErr: "failed to parse config",
		},
		{
			name:    "unknown log level",
			content: "log:\n  level: loud\n",
			wantErr: `unknown log level "loud"`,
		},
		{
			name:    "empty data dir",
			content: "data_dir: \"\"\n",
			wantErr: "data_dir is required",
		},
		{
			name:    "negative delay",
			content: "provision_delay: -1s\n",
			wantErr: "provision_delay must not be negative",
		},
		{
			name:    "invalid version",
			content: "transformations:\n  cluster:\n    nine: [dns_list]\n",
			wantErr: "transformations.cluster: invalid version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoggingUnknownLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "verbose"

	_, err := cfg.Logging()
	assert.EqualError(t, err, `unknown log level "verbose"`)
	assert.EqualError(t, cfg.Validate(), `unknown log level "verbose"`)
}
