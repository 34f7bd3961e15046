package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"textile-core/internal/client"
	"textile-core/internal/config"
	"textile-core/internal/observability"
)

var (
	cfgFile  string
	logLevel string
	flagsIn  struct {
		server, name, encoding, token string
		plain                         bool
	}

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "textile-client [host[:port]]",
	Short: "Line-based Textile chat client",
	Long: `textile-client connects to a Textile relay, runs the handshake and
sends every line typed on stdin as a chat message. Type /quit to leave.

The reconnect token issued by the server is printed on exit; pass it back
with --token to keep the same identity.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		flags := cmd.Flags()
		if len(args) == 1 {
			cfg.Client.Server = args[0]
		} else if flags.Changed("server") {
			cfg.Client.Server = flagsIn.server
		}
		if flags.Changed("name") {
			cfg.Client.Name = flagsIn.name
		}
		if flags.Changed("encoding") {
			cfg.Client.Encoding = flagsIn.encoding
		}
		if flags.Changed("token") {
			cfg.Client.Token = flagsIn.token
		}
		if flags.Changed("plain") {
			cfg.Client.NoColor = flagsIn.plain
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

		c := client.New(client.Options{
			Server:       cfg.Client.Server,
			Name:         cfg.Client.Name,
			Encoding:     cfg.Client.Encoding,
			ClientType:   cfg.Client.ClientType,
			Token:        cfg.Client.Token,
			DialTimeout:  cfg.Client.DialTimeout,
			PingInterval: cfg.Client.PingInterval,
			Plain:        cfg.Client.NoColor,
			Logger:       logger,
		})
		err := c.Run(ctx, os.Stdin, cmd.OutOrStdout())
		if tok := c.Token(); tok != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "reconnect token: %s\n", tok)
		}
		return err
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
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

	f := rootCmd.Flags()
	f.StringVar(&flagsIn.server, "server", "", "relay address host[:port]")
	f.StringVar(&flagsIn.name, "name", "", "display name")
	f.StringVar(&flagsIn.encoding, "encoding", "", "text encoding to negotiate (ASCII, UTF8, Unicode, ...)")
	f.StringVar(&flagsIn.token, "token", "", "reconnect token from a previous session")
	f.BoolVar(&flagsIn.plain, "plain", false, "disable colours")
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
