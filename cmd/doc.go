// Package cmd implements the command-line interface of the NPS status server.
// It provides a hierarchical command structure with operations for running the
// server, querying and administrating it, and inspecting captured packets.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the status server
//   - status: Client commands (get, ping, bench) and database administration (seed, ban, gag, lift)
//   - decode: Packet decoder for hex dumps of NPS messages
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable NPS_<FLAG> or in a .env file.
// See nps -help for a list of all commands.
package cmd
