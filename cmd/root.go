package cmd

import (
	"fmt"
	"github.com/ValentinKolb/nps/cmd/decode"
	"github.com/ValentinKolb/nps/cmd/serve"
	"github.com/ValentinKolb/nps/cmd/status"
	"github.com/ValentinKolb/nps/cmd/util"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "nps",
		Short: "NPS login status server and tools",
		Long: fmt.Sprintf(`nps (v%s)

Server, client and packet tools for the NPS binary message format.
The status server answers user status requests of login frontends
from a SQLite database with an in-memory cache in front of it.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nps",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nps v%s (wire version %d)\n", Version, message.Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(status.StatusCommands)
	RootCmd.AddCommand(decode.DecodeCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
