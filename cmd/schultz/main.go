// Command schultz probes the handshake of a permissioned peer-to-peer
// network.
//
// It establishes mutually authenticated TLS with peers, exchanges one signed
// handshake message in each direction and reports, per peer, whether the
// peer would be admitted and why not.
//
// Usage:
//
//	schultz <command> [flags]
//
// Commands:
//
//	bootstrap  Dial the bootnodes once, report every outcome and exit
//	run        Dial the bootnodes and accept inbound handshakes until stopped
//	keygen     Write a new private key in PEM format
//
// Common flags (bootstrap, run):
//
//	-config string           YAML configuration file
//	-network string          Network name
//	-chainspec string        Chainspec file, hashed into the chain fork hash
//	-chain-fork-hash string  Chain fork hash (64 hex characters)
//	-protocol-version string Advertised protocol version (default "1.0.0")
//	-encoding string         Message encoding: cbor, compact (default "cbor")
//	-version-policy string   Version policy: major, strict-minor
//	-key string              Private key file (default: generate a fresh key)
//	-bootnode address        Peer to dial (repeatable)
//	-listen address          Accept inbound handshakes on this address
//	-redial-interval duration Re-probe bootnodes while running (run only)
//	-timeout duration        Per-attempt timeout (default 20s)
//	-format string           Report format: text, json, junit (default "text")
//	-verbose                 Verbose reports and debug logging
//	-log-format string       Operational log format: text, json
//	-metrics-addr address    Serve Prometheus metrics on this address
//	-protocol-log string     File path for protocol event logging (CBOR format)
//
// Exit status is 0 when every attempt was accepted, 1 when any attempt was
// rejected or failed, and 2 on configuration errors.
//
// Examples:
//
//	# Check a node against the local chainspec
//	schultz bootstrap -network casper -chainspec chainspec.toml -bootnode 3.14.161.135:35000
//
//	# Run as a listening node with a config file and metrics
//	schultz run -config schultz.yaml -metrics-addr :9100
//
//	# Generate a key
//	schultz keygen -o node.pem
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `schultz - Handshake Probe

Usage:
  schultz <command> [flags]

Commands:
  bootstrap  Dial the bootnodes once, report every outcome and exit
  run        Dial the bootnodes and accept inbound handshakes until stopped
  keygen     Write a new private key in PEM format

Use "schultz <command> -help" for more information about a command.
`

// Exit codes.
const (
	exitOK       = 0
	exitRejected = 1
	exitConfig   = 2
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitConfig)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch cmd {
	case "bootstrap":
		code = runProbe(ctx, modeBootstrap, args, os.Stdout, os.Stderr)
	case "run":
		code = runProbe(ctx, modeRun, args, os.Stdout, os.Stderr)
	case "keygen":
		code = runKeygen(args, os.Stdout, os.Stderr)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		code = exitConfig
	}

	stop()
	os.Exit(code)
}
