package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, device.KindFile, config.Device.Kind)
	assert.Equal(t, "./data/eeprom.bin", config.Device.Path)
	assert.Equal(t, 1024, config.Device.Size)
	assert.False(t, config.Device.Sync)
	assert.Equal(t, 16, config.Record.Size)
	assert.False(t, config.Record.ValidateScan)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Bind)
	assert.Equal(t, "auto", config.Server.APIKey)
	assert.Equal(t, "./data/snapshots", config.Snapshots.Dir)
	assert.Equal(t, "info", config.Logging.Level)

	assert.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"memory needs no path", func(c *Config) { c.Device.Kind = device.KindMemory; c.Device.Path = "" }, ""},
		{"file needs path", func(c *Config) { c.Device.Path = "" }, "device.path is required"},
		{"unknown kind", func(c *Config) { c.Device.Kind = "flash" }, "device.kind"},
		{"device too large", func(c *Config) { c.Device.Size = device.MaxSize + 1 }, "device.size"},
		{"zero size", func(c *Config) { c.Device.Size = 0 }, "device.size"},
		{"record too large", func(c *Config) { c.Device.Size = 32; c.Record.Size = 25 }, "does not fit"},
		{"record fills device", func(c *Config) { c.Device.Size = 32; c.Record.Size = 24 }, ""},
		{"negative record", func(c *Config) { c.Record.Size = -1 }, "must not be negative"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"level case insensitive", func(c *Config) { c.Logging.Level = "DEBUG" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDeviceConfig(t *testing.T) {
	config := DefaultConfig()
	config.Device.Sync = true

	dc := config.DeviceConfig()
	assert.Equal(t, device.Config{Kind: device.KindFile, Path: "./data/eeprom.bin", Size: 1024, Sync: true}, dc)
}

func TestLoggingDebug(t *testing.T) {
	assert.True(t, Logging{Level: "debug"}.Debug())
	assert.True(t, Logging{Level: "Debug"}.Debug())
	assert.False(t, Logging{Level: "info"}.Debug())
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64)

		_, err = hex.DecodeString(key)
		assert.NoError(t, err)
	})

	t.Run("generate different keys", func(t *testing.T) {
		key1, err := GenerateSecureKey(16)
		require.NoError(t, err)
		key2, err := GenerateSecureKey(16)
		require.NoError(t, err)

		assert.NotEqual(t, key1, key2)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		expectedConfig := &Config{
			Device:    Device{Kind: device.KindMmap, Path: "/dev/shm/eeprom", Size: 4096, Sync: true},
			Record:    Record{Size: 32, ValidateScan: true},
			Server:    Server{Port: 9000, Bind: "0.0.0.0", APIKey: "test-key"},
			Snapshots: Snapshots{Dir: "/var/lib/wearlevel/snapshots"},
			Logging:   Logging{Level: "debug"},
		}

		require.NoError(t, SaveConfig(expectedConfig, configPath))

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "partial.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("record:\n  size: 8\n"), 0600))

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 8, loadedConfig.Record.Size)
		assert.Equal(t, 1024, loadedConfig.Device.Size)
		assert.Equal(t, "info", loadedConfig.Logging.Level)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644))

		_, err := LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	config := DefaultConfig()

	require.NoError(t, SaveConfig(config, configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	// A regular file where a directory is expected
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err := SaveConfig(DefaultConfig(), filepath.Join(blocker, "sub", "config.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}

func TestBootstrapConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	dataDir := "/custom/data/dir"

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "eeprom.bin"), config.Device.Path)
	assert.Equal(t, filepath.Join(dataDir, "snapshots"), config.Snapshots.Dir)
	assert.NotEqual(t, "auto", config.Server.APIKey)

	_, err = hex.DecodeString(config.Server.APIKey)
	assert.NoError(t, err)

	assert.True(t, ConfigExists(configPath))

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "wearlevel")
}

func TestConfigYAMLMarshalling(t *testing.T) {
	config := DefaultConfig()
	config.Record.ValidateScan = true

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "validate_scan: true")

	var unmarshalled Config
	require.NoError(t, yaml.Unmarshal(data, &unmarshalled))
	assert.Equal(t, config, &unmarshalled)
}
