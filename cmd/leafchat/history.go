package main

import (
	"github.com/spf13/cobra"

	"leafchat/internal/app"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the locally stored transcript without connecting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.PrintHistory(cmd.Context(), cmd.OutOrStdout(), clientCfg.DBPath, clientCfg.Channel, historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "lines", "n", 50, "number of messages to print")
	rootCmd.AddCommand(historyCmd)
}
