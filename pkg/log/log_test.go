package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    Level
		wantErr string
	}{
		{name: "debug", want: DebugLevel},
		{name: "info", want: InfoLevel},
		{name: "warn", want: WarnLevel},
		{name: "error", want: ErrorLevel},
		{name: "", wantErr: `unknown log level ""`},
		{name: "INFO", wantErr: `unknown log level "INFO"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.name)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestInitJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: buf})
	t.Cleanup(func() { Init(Config{Level: InfoLevel}) })

	logger := WithClusterID("c1")
	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "c1", entry["cluster_id"])
	assert.Equal(t, "warn", entry["level"])
}
