package status

import (
	"github.com/ValentinKolb/nps/cmd/util"
	"github.com/ValentinKolb/nps/rpc/client"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	statusClient *client.UserStatusClient

	// StatusCommands represents the status command group
	StatusCommands = &cobra.Command{
		Use:                "status",
		Short:              "Query the status server and administrate its database",
		PersistentPreRunE:  setupStatusClient,
		PersistentPostRunE: closeStatusClient,
	}
)

func init() {
	// Add common RPC flags to the status command
	util.SetupRPCClientFlags(StatusCommands)

	// Add subcommands
	StatusCommands.AddCommand(getCmd)
	StatusCommands.AddCommand(pingCmd)
	StatusCommands.AddCommand(benchCmd)
	StatusCommands.AddCommand(seedCmd)
	StatusCommands.AddCommand(banCmd)
	StatusCommands.AddCommand(gagCmd)
	StatusCommands.AddCommand(liftCmd)
}

// setupStatusClient initializes the RPC status client
func setupStatusClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// Create the status client
	statusClient, err = client.NewUserStatusClient(
		*config,
		t,
		s,
	)

	return err
}

func closeStatusClient(*cobra.Command, []string) error {
	if statusClient == nil {
		return nil
	}
	return statusClient.Close()
}
