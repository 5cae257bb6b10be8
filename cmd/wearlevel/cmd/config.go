package cmd

import (
	"github.com/spf13/cobra"
	"github.com/ssargent/wearlevel/pkg/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// The file may not exist yet
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with a generated API key",
		Long: `Create a configuration file with defaults and a freshly generated API key
for the REST server. An existing file is kept unless --force is given.

Examples:
  wearlevel config init
  wearlevel config init --config ./wearlevel.yaml --data-dir ./data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			force, _ := cmd.Flags().GetBool("force")

			if configPath == "" {
				configPath = config.GetDefaultConfigPath()
			}

			if config.ConfigExists(configPath) && !force {
				cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(configPath, dataDir)
			if err != nil {
				return err
			}

			cmd.Printf("Configuration created at %s\n", configPath)
			cmd.Printf("Device: %s %s (%d bytes)\n", cfg.Device.Kind, cfg.Device.Path, cfg.Device.Size)
			cmd.Printf("API key: %s\n", cfg.Server.APIKey)
			return nil
		},
	}
	initCmd.Flags().String("data-dir", "./data", "Directory for the device image and snapshots")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")

	configCmd.AddCommand(initCmd)
	return configCmd
}
