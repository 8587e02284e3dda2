package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Socket configuration (shared by server and client)
// --------------------------------------------------------------------------

// SocketConfig holds the options applied to every tcp connection.
// Unix sockets ignore them.
type SocketConfig struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative keeps the system default
	WriteBufferSize int
	ReadBufferSize  int
}

func (c *SocketConfig) addFields(addField func(name, value string)) {
	addField("TCP No Delay", strconv.FormatBool(c.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))
	addField("Write Buffer Size", strconv.Itoa(c.WriteBufferSize))
	addField("Read Buffer Size", strconv.Itoa(c.ReadBufferSize))
}

// DefaultSocketConfig returns the socket options used when none are configured.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		TCPNoDelay:      true,
		TCPKeepAliveSec: 30,
		TCPLingerSec:    -1,
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the login server.
type ServerConfig struct {
	// Transport settings
	Transport     string // tcp or unix
	Endpoint      string
	Serializer    string // binary or json
	TimeoutSecond int64
	Workers       int // concurrent requests per connection
	Socket        SocketConfig

	// Status store settings
	DBPath        string
	CacheTTL      time.Duration
	CacheSize     int
	SweepInterval time.Duration

	// Prometheus scrape endpoint, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Timeout returns TimeoutSecond as duration.
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Serializer", c.Serializer)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Connection", strconv.Itoa(int(math.Max(1, float64(c.Workers)))))
	if c.Transport == "tcp" {
		c.Socket.addFields(addField)
	}

	// Status store
	addSection("Status Store")
	addField("Database", c.DBPath)
	addField("Cache TTL", c.CacheTTL.String())
	addField("Cache Size", strconv.Itoa(c.CacheSize))
	addField("Sweep Interval", c.SweepInterval.String())

	// Metrics
	addSection("Metrics")
	if c.MetricsEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Transport              string
	Endpoints              []string
	Serializer             string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
	Socket                 SocketConfig
}

// Timeout returns TimeoutSecond as duration.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Transport", c.Transport)
	addField("Serializer", c.Serializer)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))
	if c.Transport == "tcp" {
		c.Socket.addFields(addField)
	}

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
