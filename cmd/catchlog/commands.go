package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/catchlog/internal/config"
	"github.com/sakif/catchlog/internal/repository/sqlite"
	"github.com/sakif/catchlog/internal/server"
	"github.com/sakif/catchlog/internal/service"
)

// rootCommand builds the command tree. Running catchlog with no subcommand
// is the same as catchlog serve.
func rootCommand() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:           "catchlog",
		Short:         "Hunting and fishing catch log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}
	if err := config.BindFlags(v, rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	serveCmd := serveCommand(v)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(serveCmd, statsCommand(v))

	return rootCmd
}

func serveCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(cmd.OutOrStdout())
			slog.SetDefault(logger)

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Start(cmd.Context())
		},
	}
}

// statsCommand prints the aggregate counts as JSON without starting the
// HTTP server.
func statsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print catch counts from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(cmd.ErrOrStderr())

			db, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			stats, err := service.NewCatchService(db, logger).Stats(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
