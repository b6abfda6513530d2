package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("PRINTER_NAME", "TM-T20")
	t.Setenv("RECEIPT_WIDTH", "48")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Auth.ApiKey)
	assert.Equal(t, "TM-T20", cfg.Printer.Name)
	assert.Equal(t, 48, cfg.Printer.ReceiptWidth)
	assert.Equal(t, TransportCUPS, cfg.Printer.Transport)
	assert.Equal(t, 17800, cfg.Server.Port)
	assert.Equal(t, 384, cfg.Printer.DotWidth)
	assert.NoError(t, Validate(cfg))
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[auth]
api_key = "from-file"

[printer]
name = "file-printer"
receipt_width = 42
logo_path = "assets/logo.png"
`), 0644))
	t.Setenv("PRINTER_NAME", "env-printer")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.ApiKey)
	assert.Equal(t, "env-printer", cfg.Printer.Name)
	assert.Equal(t, 42, cfg.Printer.ReceiptWidth)
	assert.Equal(t, "assets/logo.png", cfg.Printer.LogoPath)
}

func TestLoadRejectsBadWidth(t *testing.T) {
	t.Setenv("RECEIPT_WIDTH", "wide")
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PRINTER_TRANSPORT=ble\n"), 0644))
	t.Setenv("PRINTER_TRANSPORT", "")
	require.NoError(t, os.Unsetenv("PRINTER_TRANSPORT"))

	require.NoError(t, LoadEnv(filepath.Join(dir, "absent.env"), envPath))
	assert.Equal(t, "ble", os.Getenv("PRINTER_TRANSPORT"))
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.Contains(t, err.Error(), "printer.name")

	cfg.Auth.ApiKey = "k"
	cfg.Printer.Transport = TransportBLE
	cfg.BLE.ServiceUUID = "000018f0-0000-1000-8000-00805f9b34fb"
	cfg.BLE.WriteCharacteristicUUID = "00002af1-0000-1000-8000-00805f9b34fb"
	assert.NoError(t, Validate(&cfg))

	cfg.Printer.ReceiptWidth = -1
	assert.Error(t, Validate(&cfg))

	cfg.Printer.ReceiptWidth = 32
	cfg.Printer.Transport = "usb"
	assert.Error(t, Validate(&cfg))
}

func TestValidateRejectsNegativeServerLimits(t *testing.T) {
	cfg := Config{}
	cfg.Auth.ApiKey = "k"
	cfg.Printer.Name = "p"
	cfg.Server.RequestTimeoutSeconds = -5
	cfg.Server.PrintRatePerMinute = -1
	ApplyDefaults(&cfg)

	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout_seconds")
	assert.Contains(t, err.Error(), "print_rate_per_minute")

	cfg.Server.RequestTimeoutSeconds = 10
	cfg.Server.PrintRatePerMinute = 60
	assert.NoError(t, Validate(&cfg))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Config{}
	cfg.Auth.ApiKey = "k"
	cfg.Printer.Name = "p"
	require.NoError(t, Save(path, &cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}
