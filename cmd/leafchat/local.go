package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leafchat/internal/app"
	"leafchat/internal/pkg/randx"
)

var localCfg = app.LocalConfig{
	Addr:          "127.0.0.1:0",
	AdminUsername: "admin",
}

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run a development server on loopback and open the client against it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if localCfg.AdminPassword == "" {
			localCfg.AdminPassword = randx.Password()
			fmt.Fprintf(cmd.OutOrStdout(), "admin login: %s / %s\n", localCfg.AdminUsername, localCfg.AdminPassword)
		}
		return app.RunLocal(cmd.Context(), localCfg, clientCfg)
	},
}

func init() {
	flags := localCmd.Flags()
	flags.StringVar(&localCfg.Addr, "addr", localCfg.Addr, "listen address")
	flags.StringVar(&localCfg.AdminUsername, "admin", localCfg.AdminUsername, "seeded admin username")
	flags.StringVar(&localCfg.AdminPassword, "admin-password", "", "seeded admin password (random when empty)")
	flags.StringVar(&localCfg.UploadDir, "upload-dir", "", "keep uploads in this directory instead of memory")
	rootCmd.AddCommand(localCmd)
}
