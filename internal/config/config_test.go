package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yaml)))
	return decode(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.Signal.PingPeriod)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.Rendezvous.ICEServers)
	assert.Equal(t, DefaultCallConfig(), cfg.Call)
	assert.Equal(t, 5*time.Second, cfg.Call.ConnectDeadline)
	assert.Equal(t, 2, cfg.Call.ConnectAttempts)
}

func TestOverrides(t *testing.T) {
	cfg, err := load(t, `
mode: debug
signal:
  url: ws://match.example/ws
  text_limit: 2
call:
  connect_deadline: 8s
  connect_attempts: 3
  reconnect_delay: 100ms
`)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, "ws://match.example/ws", cfg.Signal.URL)
	assert.Equal(t, 2, cfg.Signal.TextLimit)
	assert.Equal(t, 8*time.Second, cfg.Call.ConnectDeadline)
	assert.Equal(t, 3, cfg.Call.ConnectAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Call.ReconnectDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Call.ReadinessInterval)
}

func TestRejectsZeroConnectAttempts(t *testing.T) {
	_, err := load(t, "call:\n  connect_attempts: 0\n")
	require.Error(t, err)
}
