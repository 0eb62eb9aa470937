package cmd

import (
	"github.com/spf13/cobra"

	"shortform-pipeline/config"
	server2 "shortform-pipeline/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and pipeline workers",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
