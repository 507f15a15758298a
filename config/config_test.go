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
	path := filepath.Join(t.TempDir(), "flash32w.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FLASH32W_CONFIG", "")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "usb", cfg.Transport.Kind)
	assert.Equal(t, 500*time.Millisecond, cfg.Transport.Timeout)
	assert.Equal(t, []int{0x5740, 0x5741}, cfg.Transport.ProductIDs)
	assert.Equal(t, uint32(0x08000000), cfg.Flash.BaseAddress)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
transport:
  kind: Serial
  port: /dev/ttyACM1
  timeout: 250ms
retry:
  attempts: 20
  delay: 50ms
flash:
  base_address: 0x08001000
  verify: true
trace: true
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serial", cfg.Transport.Kind)
	assert.Equal(t, "/dev/ttyACM1", cfg.Transport.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Transport.Timeout)
	assert.Equal(t, 20, cfg.Retry.Attempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, uint32(0x08001000), cfg.Flash.BaseAddress)
	assert.True(t, cfg.Flash.Verify)
	assert.True(t, cfg.Trace)
	assert.Equal(t, "json", cfg.Log.Format)

	// untouched keys keep their defaults
	assert.Equal(t, 115200, cfg.Baud.Target)
	assert.Equal(t, 100, cfg.Handshake.Attempts)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("FLASH32W_TRANSPORT_KIND", "serial")
	t.Setenv("FLASH32W_RETRY_ATTEMPTS", "7")
	t.Setenv("FLASH32W_FLASH_VERIFY", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "serial", cfg.Transport.Kind)
	assert.Equal(t, 7, cfg.Retry.Attempts)
	assert.True(t, cfg.Flash.Verify)
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "baud:\n  target: 57600\n")
	t.Setenv("FLASH32W_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 57600, cfg.Baud.Target)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "unknown transport", body: "transport:\n  kind: bluetooth\n", want: "transport.kind"},
		{name: "bad log level", body: "log:\n  level: loud\n", want: "log.level"},
		{name: "zero attempts", body: "retry:\n  attempts: 0\n", want: "retry.attempts"},
		{name: "vendor id too large", body: "transport:\n  vendor_id: 0x10000\n", want: "vendor_id"},
		{name: "malformed yaml", body: "transport: [\n", want: "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
