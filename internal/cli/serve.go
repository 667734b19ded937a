package cli

import (
	"os"
	"os/signal"
	"syscall"

	"collabboard/internal/config"
	"collabboard/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys: command line flag -> config key. Flags win over the environment when set.
var flagKeys = map[string]string{
	"port":         "port",
	"log-level":    "log_level",
	"redis":        "redis_addr",
	"database-url": "database_url",
	"domains":      "domains",
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	config.LoadDotEnv()
	v := config.NewViper()
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket server",
		Long: `Start the WebSocket server and the room catalogue API.

Configuration comes from the environment (and .env). Set REDIS_ADDR to
relay events between several nodes and DATABASE_URL to keep the room
catalogue in Postgres.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, server.NewLogger(cfg.LogLevel))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("redis", "", "Redis address for the multi-node relay")
	cmd.Flags().String("database-url", "", "Postgres DSN for the room catalogue")
	cmd.Flags().String("domains", "", "Comma separated allowed origins")

	return cmd
}
