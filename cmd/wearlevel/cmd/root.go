package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/wearlevel/pkg/config"
	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/ssargent/wearlevel/pkg/di"
	"github.com/ssargent/wearlevel/pkg/wearlevel"
)

type contextKey string

const configKey contextKey = "config"

var container *di.Container

// SetContainer injects the dependency container used by all commands
func SetContainer(c *di.Container) {
	container = c
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wearlevel",
		Short: "Wear-levelled record storage for EEPROM devices",
		Long: `wearlevel keeps a single fixed-size record on a byte-addressable device,
moving it one byte along on every write so erase cycles are spread over
the whole device. Each copy carries a start marker and a CRC16 so the
latest record can be found and checked after a power cycle.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default ~/.config/wearlevel/config.yaml)")
	flags.StringP("device", "d", "", "Path of the device image")
	flags.String("device-kind", "", "Device kind: memory, file or mmap")
	flags.Int("size", 0, "Device size in bytes")
	flags.Int("record-size", 0, "Record payload size in bytes")
	flags.Bool("validate-scan", false, "Only accept markers whose record checksum verifies")
	flags.Bool("debug", false, "Log store activity to stderr")

	rootCmd.AddCommand(
		newConfigCmd(),
		newFormatCmd(),
		newStatusCmd(),
		newWriteCmd(),
		newReadCmd(),
		newVerifyCmd(),
		newChecksumCmd(),
		newSimulateCmd(),
		newServeCmd(),
		newSnapshotCmd(),
	)

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, when there is one, and applies flag
// overrides on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	cfg := config.DefaultConfig()
	switch {
	case configPath != "":
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case config.ConfigExists(config.GetDefaultConfigPath()):
		loaded, err := config.LoadConfig(config.GetDefaultConfigPath())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Changed("device") {
		cfg.Device.Path, _ = flags.GetString("device")
	}
	if flags.Changed("device-kind") {
		cfg.Device.Kind, _ = flags.GetString("device-kind")
	}
	if flags.Changed("size") {
		cfg.Device.Size, _ = flags.GetInt("size")
	}
	if flags.Changed("record-size") {
		cfg.Record.Size, _ = flags.GetInt("record-size")
	}
	if flags.Changed("validate-scan") {
		cfg.Record.ValidateScan, _ = flags.GetBool("validate-scan")
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// session is an open device with an initialized store on top
type session struct {
	cfg   *config.Config
	dev   device.Device
	wear  *device.WearCounter
	store *wearlevel.Store
	scan  wearlevel.ScanResult
}

func (s *session) Close() error {
	return s.dev.Close()
}

// storeOptions translates the configuration into store options
func storeOptions(cmd *cobra.Command, cfg *config.Config) []wearlevel.Option {
	var opts []wearlevel.Option
	if cfg.Record.ValidateScan {
		opts = append(opts, wearlevel.WithScanValidation(cfg.Record.Size))
	}
	if cfg.Logging.Debug() {
		opts = append(opts, wearlevel.WithLogger(log.New(cmd.ErrOrStderr(), "wearlevel: ", log.LstdFlags)))
	}
	return opts
}

// openSession opens the configured device and runs Init on it
func openSession(cmd *cobra.Command, trackWear bool) (*session, error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if container == nil {
		return nil, errors.New("dependency container not initialized")
	}

	dev, wc, err := container.GetDeviceFactory().OpenDevice(cfg.DeviceConfig(), trackWear)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}

	store, err := wearlevel.NewStore(dev, storeOptions(cmd, cfg)...)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	scan, err := store.Init()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return &session{cfg: cfg, dev: dev, wear: wc, store: store, scan: scan}, nil
}
