package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ringdb/ringdb/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve the storage instance over HTTP: sample writes, range queries,
stats, and Prometheus metrics.

Examples:
  ringdb serve --port 8181
  ringdb serve --data-dir=./data --name=metrics --bind 0.0.0.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}
		if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
			cfg.Bind = bind
		}

		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		return api.StartServer(store, api.ServerConfig{
			Bind: cfg.Bind,
			Port: cfg.Port,
		}, newLogger(cfg))
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("bind", "", "Address to bind")
	rootCmd.AddCommand(serveCmd)
}
