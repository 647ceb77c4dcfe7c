package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_GeneratesDefaultFileWhenMissing(t *testing.T) {
	const configFile = "example.conf"
	defer os.Remove(configFile)

	cfg, err := Load(configFile, "0.0.0")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ListenHost)
	assert.Equal(t, 8053, cfg.ListenPort)
	assert.Equal(t, "8.8.8.8:53", cfg.UpstreamResolver)
	assert.Equal(t, 250, cfg.AggregateTimeoutMs)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0.0.0", cfg.ServerVersion())
}

func Test_Load_MissingPathErrors(t *testing.T) {
	_, err := Load("", "0.0.0")
	assert.Error(t, err)
}

func Test_Config_Bind_UsesDefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "0.0.0.0:8053", cfg.Bind())
}

func Test_Config_Bind_UsesConfiguredValues(t *testing.T) {
	cfg := &Config{ListenHost: "127.0.0.1", ListenPort: 5300}
	assert.Equal(t, "127.0.0.1:5300", cfg.Bind())
}

func Test_Config_AggregateTimeout_DefaultsTo250ms(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 250*time.Millisecond, cfg.AggregateTimeout())
}

func Test_Config_AggregateTimeout_HonoursConfiguredValue(t *testing.T) {
	cfg := &Config{AggregateTimeoutMs: 500}
	assert.Equal(t, 500*time.Millisecond, cfg.AggregateTimeout())
}

func Test_Duration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("5s")))
	assert.Equal(t, 5*time.Second, d.Duration)
}
