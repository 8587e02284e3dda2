package status

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/nps/cmd/util"
	"github.com/ValentinKolb/nps/lib/message"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var (
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Performance testing tool for NPS status servers",
		Long: `Sends status requests for the customers 1..N from several goroutines
and prints the client metrics. Customers that do not exist are answered
as invalid, which exercises the same code path on the server.`,
		Args:    cobra.NoArgs,
		PreRunE: processBenchConfig,
		RunE:    runBench,
	}
	benchRequests  = 10_000
	benchThreads   = 10
	benchCustomers = 100
	benchOp        = message.OpUseCache
)

func init() {
	// add flags
	key := "requests"
	benchCmd.Flags().Int(key, benchRequests, util.WrapString("Total number of status requests"))
	key = "threads"
	benchCmd.Flags().Int(key, benchThreads, util.WrapString("Number of goroutines sending requests"))
	key = "customers"
	benchCmd.Flags().Int(key, benchCustomers, util.WrapString("Requests are spread over the customers 1..N"))
	key = "op"
	benchCmd.Flags().String(key, benchOp.String(), util.WrapString("cache operation of every request"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	benchRequests = viper.GetInt("requests")
	benchThreads = max(viper.GetInt("threads"), 1)
	benchCustomers = max(viper.GetInt("customers"), 1)

	op, err := message.ParseOperation(viper.GetString("op"))
	if err != nil {
		return err
	}
	benchOp = op
	return nil
}

func runBench(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for NPS status servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Requests: %d, Threads: %d, Customers: %d, Operation: %s\n", benchRequests, benchThreads, benchCustomers, benchOp)
	fmt.Println()

	var (
		next   atomic.Int64
		failed atomic.Int64
		wg     sync.WaitGroup
	)
	timeout := requestTimeout()
	start := time.Now()

	for i := 0; i < benchThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n := next.Add(1)
				if n > int64(benchRequests) {
					return
				}
				customerID := uint32(1 + (n-1)%int64(benchCustomers))

				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				_, err := statusClient.GetUserStatus(ctx, customerID, benchOp)
				cancel()
				if err != nil && failed.Add(1) <= 10 {
					fmt.Fprintf(os.Stderr, "request for %d failed: %v\n", customerID, err)
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("%d requests in %s (%.0f req/s), %d failed\n\n",
		benchRequests, elapsed.Round(time.Millisecond), float64(benchRequests)/elapsed.Seconds(), failed.Load())

	printMetrics(statusClient.Metrics())
	return nil
}

// printMetrics prints every metric of the registry as table row
func printMetrics(registry gometrics.Registry) {
	table := util.NewTable(os.Stdout, "Metric", "Count", "Mean", "P50", "P95", "P99", "Max", "Rate")

	rows := make(map[string][]string)
	registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case gometrics.Timer:
			ps := m.Percentiles([]float64{0.5, 0.95, 0.99})
			rows[name] = []string{
				name,
				strconv.FormatInt(m.Count(), 10),
				time.Duration(m.Mean()).String(),
				time.Duration(ps[0]).String(),
				time.Duration(ps[1]).String(),
				time.Duration(ps[2]).String(),
				time.Duration(m.Max()).String(),
				fmt.Sprintf("%.1f/s", m.RateMean()),
			}
		case gometrics.Meter:
			rows[name] = []string{name, strconv.FormatInt(m.Count(), 10), "", "", "", "", "", fmt.Sprintf("%.1f/s", m.RateMean())}
		case gometrics.Counter:
			rows[name] = []string{name, strconv.FormatInt(m.Count(), 10), "", "", "", "", "", ""}
		}
	})

	names := make([]string, 0, len(rows))
	for name := range rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		table.Append(rows[name])
	}
	table.Render()
}
