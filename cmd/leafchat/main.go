package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leafchat/internal/app"
)

var clientCfg app.ClientConfig

var rootCmd = &cobra.Command{
	Use:   "leafchat",
	Short: "Terminal client for an invite-only chat server",
	Long: `leafchat connects to a chat server, restores your session and opens the
channel feed in the terminal.

Configuration comes from .env, then LEAFCHAT_* variables, then flags.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunClient(cmd.Context(), clientCfg)
	},
}

func init() {
	cfg, err := app.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "leafchat: %v\n", err)
		os.Exit(2)
	}
	clientCfg = cfg

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&clientCfg.ServerURL, "server", clientCfg.ServerURL, "server base URL (LEAFCHAT_SERVER)")
	flags.StringVar(&clientCfg.SocketPath, "socket-path", clientCfg.SocketPath, "realtime socket path (LEAFCHAT_SOCKET_PATH)")
	flags.StringVar(&clientCfg.Channel, "channel", clientCfg.Channel, "channel name used for the local transcript (LEAFCHAT_CHANNEL)")
	flags.StringVar(&clientCfg.Username, "user", clientCfg.Username, "username to prefill at login (LEAFCHAT_USER)")
	flags.StringVar(&clientCfg.DBPath, "db", clientCfg.DBPath, "sqlite database path (LEAFCHAT_DB_PATH)")
	flags.StringVar(&clientCfg.LogPath, "log", clientCfg.LogPath, "log file path (LEAFCHAT_LOG_PATH)")
	flags.DurationVar(&clientCfg.HTTPTimeout, "timeout", clientCfg.HTTPTimeout, "HTTP request timeout (LEAFCHAT_HTTP_TIMEOUT)")
	flags.BoolVar(&clientCfg.AutoReconnect, "reconnect", clientCfg.AutoReconnect, "redial the channel after a drop (LEAFCHAT_RECONNECT)")
	flags.StringVar(&clientCfg.RosterPolicy, "roster-policy", clientCfg.RosterPolicy, "keep or drop online users whose profile lookup fails")
	flags.BoolVar(&clientCfg.Debug, "debug", clientCfg.Debug, "debug logging (LEAFCHAT_DEBUG)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "leafchat: %v\n", err)
		os.Exit(1)
	}
}
