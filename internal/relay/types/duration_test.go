package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"5m"`), &d))
	assert.Equal(t, 5*time.Minute, time.Duration(d))

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, time.Duration(d))

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))
}

func TestDuration_YAML(t *testing.T) {
	var cfg struct {
		Delay Duration `yaml:"delay"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("delay: 30s"), &cfg))
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Delay))

	require.NoError(t, yaml.Unmarshal([]byte("delay: 1000000000"), &cfg))
	assert.Equal(t, time.Second, time.Duration(cfg.Delay))
}
