package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/nps/cmd/util"
	"github.com/ValentinKolb/nps/lib/store/cstore"
	"github.com/ValentinKolb/nps/rpc/common"
	"github.com/ValentinKolb/nps/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the NPS status server",
		Long:    `Start the NPS status server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is NPS_<flag> (e.g. NPS_CACHE_TTL=10m)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := cstore.DefaultConfig()
	socket := common.DefaultSocketConfig()

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. 0.0.0.0:8080 for tcp, /tmp/nps.sock for unix)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for reading and answering a request. Idle connections are closed after this time"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("How many requests of one connection are processed concurrently"))

	key = "db-path"
	ServeCmd.PersistentFlags().String(key, "data/status.db", cmdUtil.WrapString("Path of the SQLite database holding customers, session keys, bans and gags"))

	key = "cache-ttl"
	ServeCmd.PersistentFlags().Duration(key, defaults.TTL, cmdUtil.WrapString("How long a loaded user status is answered from the cache"))

	key = "cache-size"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxEntries, cmdUtil.WrapString("Maximum number of cached user statuses (0 means unbounded)"))

	key = "cache-sweep-interval"
	ServeCmd.PersistentFlags().Duration(key, defaults.SweepInterval, cmdUtil.WrapString("Interval of the background sweep removing expired cache entries"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus /metrics endpoint (e.g. localhost:9100), empty disables it"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket write buffer (in KB, 0 keeps the system default, only for tcp)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket read buffer (in KB, 0 keeps the system default, only for tcp)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, socket.TCPNoDelay, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, socket.TCPKeepAliveSec, cmdUtil.WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, socket.TCPLingerSec, cmdUtil.WrapString("The linger time (in seconds, -1 keeps the system default, only for tcp)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Workers = viper.GetInt("workers")
	serveCmdConfig.Socket = cmdUtil.GetSocketConfig()
	serveCmdConfig.DBPath = viper.GetString("db-path")
	serveCmdConfig.CacheTTL = viper.GetDuration("cache-ttl")
	serveCmdConfig.CacheSize = viper.GetInt("cache-size")
	serveCmdConfig.SweepInterval = viper.GetDuration("cache-sweep-interval")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if serveCmdConfig.DBPath == "" {
		return fmt.Errorf("db-path is required")
	}
	if serveCmdConfig.CacheTTL <= 0 {
		return fmt.Errorf("cache-ttl must be positive, got %s", serveCmdConfig.CacheTTL)
	}
	if serveCmdConfig.CacheSize < 0 {
		return fmt.Errorf("cache-size must not be negative, got %d", serveCmdConfig.CacheSize)
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the NPS status server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	// stop gracefully on interrupt
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			server.Logger.Infof("shutting down")
			if err := serv.Close(); err != nil {
				server.Logger.Errorf("shutdown: %v", err)
			}
		}
	}()

	if err := serv.Serve(); err != nil {
		_ = serv.Close()
		return err
	}
	return serv.Close()
}
