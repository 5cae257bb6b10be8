/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/ssargent/wearlevel/pkg/record"
	"gopkg.in/yaml.v3"
)

// Config represents the wear-levelling tool configuration
type Config struct {
	Device    Device    `yaml:"device"`
	Record    Record    `yaml:"record"`
	Server    Server    `yaml:"server"`
	Snapshots Snapshots `yaml:"snapshots"`
	Logging   Logging   `yaml:"logging"`
}

// Device selects the storage device holding the record
type Device struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
	Size int    `yaml:"size"`
	Sync bool   `yaml:"sync"`
}

// Record describes the stored record
type Record struct {
	Size         int  `yaml:"size"`
	ValidateScan bool `yaml:"validate_scan"`
}

// Server contains REST API configuration
type Server struct {
	Port   int    `yaml:"port"`
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"api_key"`
}

// Snapshots configures the device image archive
type Snapshots struct {
	Dir string `yaml:"dir"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Device: Device{
			Kind: device.KindFile,
			Path: "./data/eeprom.bin",
			Size: 1024,
		},
		Record: Record{
			Size: 16,
		},
		Server: Server{
			Port:   8080,
			Bind:   "127.0.0.1",
			APIKey: "auto",
		},
		Snapshots: Snapshots{
			Dir: "./data/snapshots",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate checks that the configuration describes a usable store
func (c *Config) Validate() error {
	var errs []error

	switch c.Device.Kind {
	case device.KindMemory:
	case device.KindFile, device.KindMmap:
		if c.Device.Path == "" {
			errs = append(errs, fmt.Errorf("device.path is required for %s devices", c.Device.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("device.kind %q is not one of memory, file, mmap", c.Device.Kind))
	}

	if c.Device.Size <= 0 || c.Device.Size > device.MaxSize {
		errs = append(errs, fmt.Errorf("device.size %d out of range 1..%d", c.Device.Size, device.MaxSize))
	}

	if c.Record.Size < 0 {
		errs = append(errs, fmt.Errorf("record.size %d must not be negative", c.Record.Size))
	} else if maxSize := c.Device.Size - record.HeaderSize - 2; c.Record.Size > maxSize {
		errs = append(errs, fmt.Errorf("record.size %d does not fit a %d byte device (max %d)", c.Record.Size, c.Device.Size, maxSize))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// DeviceConfig converts the device section for device.Open
func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		Kind: c.Device.Kind,
		Path: c.Device.Path,
		Size: c.Device.Size,
		Sync: c.Device.Sync,
	}
}

// Debug reports whether debug logging is enabled
func (l Logging) Debug() bool {
	return strings.EqualFold(l.Level, "debug")
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset fields keep their defaults
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key,
// placing the device image and snapshots under dataDir when given
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.Device.Path = filepath.Join(dataDir, "eeprom.bin")
		config.Snapshots.Dir = filepath.Join(dataDir, "snapshots")
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./wearlevel.yaml"
	}

	// For Linux/macOS, use ~/.config/wearlevel/config.yaml
	configDir := filepath.Join(homeDir, ".config", "wearlevel")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
