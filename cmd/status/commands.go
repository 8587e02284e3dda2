package status

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/nps/cmd/util"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/spf13/cobra"
	"os"
	"strconv"
	"time"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [customer]",
		Short: "Requests the status of a customer",
		Long: `Requests the status of a customer. The cache operation is one of
use-cache, refresh-cache, clear-cache-entry and clear-cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := parseCustomerID(args[0])
			if err != nil {
				return err
			}
			opName, _ := cmd.Flags().GetString("op")
			op, err := message.ParseOperation(opName)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
			defer cancel()

			st, err := statusClient.GetUserStatus(ctx, customerID, op)
			if err != nil {
				return err
			}
			printStatus(st)
			return nil
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Sends a heartbeat and prints the round trip time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			for i := 0; i < count; i++ {
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
				rtt, err := statusClient.Ping(ctx)
				cancel()
				if err != nil {
					return err
				}
				fmt.Printf("ack %d: %s\n", i+1, rtt)
			}
			return nil
		},
	}
)

func init() {
	getCmd.Flags().String("op", message.OpUseCache.String(), util.WrapString("cache operation (use-cache, refresh-cache, clear-cache-entry, clear-cache)"))
	pingCmd.Flags().Int("count", 1, util.WrapString("number of heartbeats to send"))
}

// parseCustomerID parses a decimal customer id
func parseCustomerID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("customer must be a number: %w", err)
	}
	return uint32(id), nil
}

// requestTimeout returns the deadline of a single command request, retries included
func requestTimeout() time.Duration {
	cfg := util.GetClientConfig()
	retries := cfg.RetryCount
	if retries < 1 {
		retries = 1
	}
	return cfg.Timeout() * time.Duration(retries+1)
}

// printStatus prints a status as table
func printStatus(st *message.UserStatus) {
	table := util.NewTable(os.Stdout, "Field", "Value")
	table.Append([]string{"Result", message.Opcode(st.MessageID()).String()})
	table.Append([]string{"Customer", strconv.FormatUint(uint64(st.CustomerID()), 10)})
	table.Append([]string{"Persona", strconv.FormatUint(uint64(st.PersonaID()), 10)})
	table.Append([]string{"Authorized", strconv.FormatBool(st.Authorized())})
	table.Append([]string{"Cache Hit", strconv.FormatBool(st.IsCacheHit())})

	key := st.SessionKey()
	if key.IsValid() {
		table.Append([]string{"Session Key", fmt.Sprintf("%x", key.Key())})
		table.Append([]string{"Session Expiry", key.ExpiryTime().Format(time.RFC3339)})
	}
	if ban := st.Ban(); ban != nil {
		table.Append([]string{"Ban", formatAction(ban)})
	}
	if gag := st.Gag(); gag != nil {
		table.Append([]string{"Gag", formatAction(gag)})
	}
	table.Render()
}

func formatAction(a *message.UserAction) string {
	until := "permanent"
	if !a.Permanent() {
		until = "until " + time.Unix(a.ExpiresAt, 0).Format(time.RFC3339)
	}
	return fmt.Sprintf("%q by %d, %s", a.Reason, a.IssuedBy, until)
}
