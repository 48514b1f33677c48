package main

import (
	"fmt"

	"github.com/spf13/cobra"

	intrnl "leafchat/internal"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the leafchat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "leafchat v%s\n", intrnl.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
