package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ssargent/wearlevel/pkg/api"
	"github.com/ssargent/wearlevel/pkg/config"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start the REST API server for the configured device. Requests must carry
the API key in the X-API-Key header. Prometheus metrics are served
without authentication at /metrics.

When the configured API key is "auto" a key is generated for this run
and printed.

Examples:
  wearlevel serve
  wearlevel serve --port 9000 --api-key mysecretkey`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			serverConfig := api.ServerConfig{
				Port:       s.cfg.Server.Port,
				Bind:       s.cfg.Server.Bind,
				APIKey:     s.cfg.Server.APIKey,
				RecordSize: s.cfg.Record.Size,
			}
			if cmd.Flags().Changed("port") {
				serverConfig.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("bind") {
				serverConfig.Bind, _ = cmd.Flags().GetString("bind")
			}
			if cmd.Flags().Changed("api-key") {
				serverConfig.APIKey, _ = cmd.Flags().GetString("api-key")
			}

			if serverConfig.APIKey == "" || serverConfig.APIKey == "auto" {
				serverConfig.APIKey, err = config.GenerateSecureKey(32)
				if err != nil {
					return err
				}
				cmd.Printf("Generated API key: %s\n", serverConfig.APIKey)
			}

			if s.scan.Found {
				cmd.Printf("Record found at 0x%04X\n", s.scan.Address)
			} else {
				cmd.Printf("No record found, run 'wearlevel format' to prepare the device\n")
			}

			if container == nil {
				return errors.New("dependency container not initialized")
			}
			starter := container.GetServerFactory().CreateServerStarter()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// A nil counter must reach the server as a nil interface
			var wear api.WearReporter
			if s.wear != nil {
				wear = s.wear
			}

			return starter.StartServer(ctx, s.store, wear, serverConfig)
		},
	}
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
	return serveCmd
}
