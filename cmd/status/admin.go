package status

import (
	"fmt"
	"github.com/ValentinKolb/nps/cmd/util"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/store/sqlstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strconv"
	"time"
)

/*
	The admin commands write directly into the SQLite database of a server and
	do not connect to it. The server answers from its cache until the entry
	expires, use "status get --op refresh-cache" to see a change immediately.
*/

var (
	statusDB *sqlstore.Store

	seedCmd = &cobra.Command{
		Use:                "seed [customer] [persona] [session-key] [valid-for]",
		Short:              "Creates or updates a customer with a session key",
		Long:               "Creates or updates a customer. The session key is given as hex string, valid-for is a duration (e.g. 24h).",
		Args:               cobra.ExactArgs(4),
		PersistentPreRunE:  openDB,
		PersistentPostRunE: closeDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := parseCustomerID(args[0])
			if err != nil {
				return err
			}
			personaID, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("persona must be a number: %w", err)
			}
			key, err := util.ParseHex(args[2])
			if err != nil {
				return fmt.Errorf("session key: %w", err)
			}
			if len(key) > message.SessionKeyLen {
				return fmt.Errorf("session key has %d bytes, at most %d are allowed", len(key), message.SessionKeyLen)
			}
			validFor, err := time.ParseDuration(args[3])
			if err != nil {
				return fmt.Errorf("valid-for must be a duration: %w", err)
			}

			if err := statusDB.UpsertCustomer(cmd.Context(), sqlstore.Customer{
				CustomerID:    customerID,
				PersonaID:     uint32(personaID),
				SessionKey:    key,
				SessionExpiry: time.Now().Add(validFor).Unix(),
			}); err != nil {
				return err
			}
			fmt.Printf("customer %d seeded\n", customerID)
			return nil
		},
	}
	banCmd = newActionCmd(message.ActionBan)
	gagCmd = newActionCmd(message.ActionGag)

	liftCmd = &cobra.Command{
		Use:                "lift [ban|gag] [customer]",
		Short:              "Lifts a ban or gag",
		Args:               cobra.ExactArgs(2),
		PersistentPreRunE:  openDB,
		PersistentPostRunE: closeDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := message.ActionKind(args[0])
			customerID, err := parseCustomerID(args[1])
			if err != nil {
				return err
			}
			lifted, err := statusDB.ClearAction(cmd.Context(), customerID, kind)
			if err != nil {
				return err
			}
			if !lifted {
				fmt.Printf("customer %d has no %s\n", customerID, kind)
				return nil
			}
			fmt.Printf("%s of customer %d lifted\n", kind, customerID)
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{seedCmd, banCmd, gagCmd, liftCmd} {
		cmd.Flags().String("db-path", "data/status.db", util.WrapString("Path of the SQLite database of the server"))
	}
	for _, cmd := range []*cobra.Command{banCmd, gagCmd} {
		cmd.Flags().Uint32("issued-by", 0, util.WrapString("Customer id of the admin issuing the action"))
	}
}

// newActionCmd creates the command issuing a ban or gag
func newActionCmd(kind message.ActionKind) *cobra.Command {
	return &cobra.Command{
		Use:                fmt.Sprintf("%s [customer] [reason] [duration]", kind),
		Short:              fmt.Sprintf("Issues a %s, a duration of 0 is permanent", kind),
		Args:               cobra.ExactArgs(3),
		PersistentPreRunE:  openDB,
		PersistentPostRunE: closeDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := parseCustomerID(args[0])
			if err != nil {
				return err
			}
			duration, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("duration must be a duration (e.g. 72h): %w", err)
			}
			issuedBy, _ := cmd.Flags().GetUint32("issued-by")

			action := message.NewUserAction(issuedBy, args[1], duration)
			if err := statusDB.SetAction(cmd.Context(), customerID, kind, action); err != nil {
				return err
			}
			fmt.Printf("%s issued for customer %d: %s\n", kind, customerID, formatAction(&action))
			return nil
		},
	}
}

// openDB opens the database given by --db-path
func openDB(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	var err error
	statusDB, err = sqlstore.Open(viper.GetString("db-path"))
	return err
}

func closeDB(*cobra.Command, []string) error {
	if statusDB == nil {
		return nil
	}
	return statusDB.Close()
}
