package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	TransportCUPS = "cups"
	TransportBLE  = "ble"
)

type Config struct {
	Server struct {
		Host                  string `toml:"host"`
		Port                  int    `toml:"port"`
		RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
		PrintRatePerMinute    int    `toml:"print_rate_per_minute"`
	} `toml:"server"`

	Auth struct {
		ApiKey string `toml:"api_key"`
	} `toml:"auth"`

	Printer struct {
		Transport    string `toml:"transport"`
		Name         string `toml:"name"`
		ReceiptWidth int    `toml:"receipt_width"`
		DotWidth     int    `toml:"dot_width"`
		LogoPath     string `toml:"logo_path"`
		CompanyName  string `toml:"company_name"`
		BranchName   string `toml:"branch_name"`
		Phone        string `toml:"phone"`
	} `toml:"printer"`

	BLE struct {
		DeviceNameContains      string `toml:"device_name_contains"`
		PrinterAddress          string `toml:"printer_address"`
		ServiceUUID             string `toml:"service_uuid"`
		WriteCharacteristicUUID string `toml:"write_characteristic_uuid"`
		ChunkSize               int    `toml:"chunk_size"`
		WriteWithResponse       bool   `toml:"write_with_response"`
	} `toml:"ble"`

	Logging struct {
		FilePath       string `toml:"file_path"`
		ConsoleVerbose bool   `toml:"console_verbose"`
	} `toml:"logging"`

	CORS struct {
		AllowOrigins        string `toml:"allow_origins"`
		AllowOriginPatterns string `toml:"allow_origin_patterns"`
	} `toml:"cors"`
}

// LoadEnv reads .env files into the process environment. Missing files
// are skipped; variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load decodes the TOML file at path. A missing file yields the defaults,
// so a deployment can be driven by environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 17800
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 30
	}
	if cfg.Server.PrintRatePerMinute == 0 {
		cfg.Server.PrintRatePerMinute = 30
	}
	if cfg.Printer.Transport == "" {
		cfg.Printer.Transport = TransportCUPS
	}
	if cfg.Printer.ReceiptWidth == 0 {
		cfg.Printer.ReceiptWidth = 32
	}
	if cfg.Printer.DotWidth == 0 {
		cfg.Printer.DotWidth = 384
	}
	if cfg.Printer.LogoPath == "" {
		cfg.Printer.LogoPath = "images/logo.png"
	}
	if cfg.BLE.ChunkSize == 0 {
		cfg.BLE.ChunkSize = 180
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = "logs/app.log"
	}
	if cfg.CORS.AllowOrigins == "" {
		cfg.CORS.AllowOrigins = "*"
	}
}

// Validate reports settings the service cannot run without.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Auth.ApiKey == "" {
		errs = append(errs, errors.New("auth.api_key (API_KEY) is required"))
	}
	switch cfg.Printer.Transport {
	case TransportCUPS:
		if cfg.Printer.Name == "" {
			errs = append(errs, errors.New("printer.name (PRINTER_NAME) is required for the cups transport"))
		}
	case TransportBLE:
		if cfg.BLE.ServiceUUID == "" || cfg.BLE.WriteCharacteristicUUID == "" {
			errs = append(errs, errors.New("ble.service_uuid and ble.write_characteristic_uuid are required for the ble transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("printer.transport %q is not one of %s, %s", cfg.Printer.Transport, TransportCUPS, TransportBLE))
	}
	if cfg.Server.RequestTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout_seconds must not be negative, got %d", cfg.Server.RequestTimeoutSeconds))
	}
	if cfg.Server.PrintRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("server.print_rate_per_minute must not be negative, got %d", cfg.Server.PrintRatePerMinute))
	}
	if cfg.Printer.ReceiptWidth <= 0 {
		errs = append(errs, fmt.Errorf("printer.receipt_width (RECEIPT_WIDTH) must be positive, got %d", cfg.Printer.ReceiptWidth))
	}
	return errors.Join(errs...)
}

func Save(path string, cfg *Config) error {
	ApplyDefaults(cfg)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	encoder := toml.NewEncoder(file)
	return encoder.Encode(cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("API_KEY"); val != "" {
		cfg.Auth.ApiKey = val
	}
	if val := os.Getenv("PRINTER_NAME"); val != "" {
		cfg.Printer.Name = val
	}
	if val := os.Getenv("RECEIPT_WIDTH"); val != "" {
		width, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("RECEIPT_WIDTH: %w", err)
		}
		cfg.Printer.ReceiptWidth = width
	}
	if val := os.Getenv("PRINTER_TRANSPORT"); val != "" {
		cfg.Printer.Transport = strings.ToLower(val)
	}
	if val := os.Getenv("BRIDGE_CORS_ALLOW_ORIGINS"); val != "" {
		cfg.CORS.AllowOrigins = val
	}
	if val := os.Getenv("BRIDGE_CORS_ALLOW_ORIGIN_PATTERNS"); val != "" {
		cfg.CORS.AllowOriginPatterns = val
	}
	return nil
}
