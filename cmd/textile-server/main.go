package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"textile-core/internal/config"
	"textile-core/internal/observability"
	"textile-core/internal/server"
)

var (
	cfgFile  string
	logLevel string
	bind     string
	port     int

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "textile-server",
	Short: "Textile chat relay server",
	Long: `textile-server accepts Textile connections, completes the handshake,
issues reconnect tokens and relays chat messages between sessions.

Configuration is read from textile.yaml (or --config) and TEXTILE_*
environment variables; flags override both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		flags := cmd.Flags()
		if flags.Changed("bind") {
			cfg.Server.Bind = bind
		}
		if flags.Changed("port") {
			cfg.Server.Port = port
		}
		if flags.Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		logger, err = observability.SetupLogger(cfg.Log)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Options{
			Bind:             cfg.Server.Bind,
			Port:             cfg.Server.Port,
			HandshakeTimeout: cfg.Server.HandshakeTimeout,
			TokenTTL:         cfg.Server.TokenTTL,
			ReapInterval:     cfg.Server.ReapInterval,
			AcceptRate:       cfg.Server.AcceptRate,
			AcceptBurst:      cfg.Server.AcceptBurst,
			MaxPayload:       cfg.Server.MaxPayload,
			Logger:           logger,
		})
		if err := srv.Listen(); err != nil {
			return err
		}
		logger.Info("textile relay listening", zap.Stringer("addr", srv.Addr()))
		if err := srv.Serve(ctx); err != nil {
			return err
		}
		logger.Info("textile relay stopped")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./textile.yaml, $TEXTILE_CONFIG)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&bind, "bind", "", "address to listen on")
	rootCmd.Flags().IntVar(&port, "port", 0, "port to listen on (default 8000)")
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
