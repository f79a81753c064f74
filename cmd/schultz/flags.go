package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/schultz-net/schultz-go/internal/config"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// probeFlags holds the flags of bootstrap and run.
type probeFlags struct {
	configPath string

	network         string
	chainspec       string
	chainForkHash   string
	protocolVersion string
	encoding        string
	versionPolicy   string
	advertise       string

	keyFile string
	scheme  string

	bootnodes      stringList
	listen         string
	timeout        time.Duration
	maxFrameSize   uint
	maxConnections int
	redial         time.Duration

	format      string
	output      string
	verbose     bool
	logFormat   string
	metricsAddr string
	protocolLog string
}

func (f *probeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")

	fs.StringVar(&f.network, "network", "", "Network name")
	fs.StringVar(&f.chainspec, "chainspec", "", "Chainspec file, hashed into the chain fork hash")
	fs.StringVar(&f.chainForkHash, "chain-fork-hash", "", "Chain fork hash (64 hex characters)")
	fs.StringVar(&f.protocolVersion, "protocol-version", "", "Advertised protocol version (default from config, else 1.0.0)")
	fs.StringVar(&f.encoding, "encoding", "", "Message encoding: cbor, compact")
	fs.StringVar(&f.versionPolicy, "version-policy", "", "Version policy: major, strict-minor")
	fs.StringVar(&f.advertise, "advertise", "", "Advertised listening address (host:port)")

	fs.StringVar(&f.keyFile, "key", "", "Private key file (default: generate a fresh key)")
	fs.StringVar(&f.scheme, "scheme", "", "Key scheme: ecdsa-p521, ecdsa-p256")

	fs.Var(&f.bootnodes, "bootnode", "Peer address to dial (repeatable, comma separated)")
	fs.StringVar(&f.listen, "listen", "", "Accept inbound handshakes on this address")
	fs.DurationVar(&f.timeout, "timeout", 0, "Per-attempt timeout (default 20s)")
	fs.UintVar(&f.maxFrameSize, "max-frame-size", 0, "Maximum frame size in bytes (default 16 MiB)")
	fs.IntVar(&f.maxConnections, "max-connections", 0, "Maximum concurrent inbound attempts (0 = unlimited)")
	fs.DurationVar(&f.redial, "redial-interval", 0, "Re-probe bootnodes at this interval while running (0 = once)")

	fs.StringVar(&f.format, "format", "text", "Report format: text, json, junit")
	fs.StringVar(&f.output, "o", "", "Report output file (default: stdout)")
	fs.BoolVar(&f.verbose, "verbose", false, "Verbose reports and debug logging")
	fs.StringVar(&f.logFormat, "log-format", "text", "Operational log format: text, json")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&f.protocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
}

// apply copies explicitly set flags over the file configuration.
func (f *probeFlags) apply(fs *flag.FlagSet, file *config.File) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "network":
			file.Network.Name = f.network
		case "chainspec":
			file.Network.Chainspec = absPath(f.chainspec)
			file.Network.ChainForkHash = ""
		case "chain-fork-hash":
			file.Network.ChainForkHash = f.chainForkHash
			file.Network.Chainspec = ""
		case "protocol-version":
			file.Network.ProtocolVersion = f.protocolVersion
		case "encoding":
			file.Network.Encoding = f.encoding
		case "version-policy":
			file.Network.VersionPolicy = f.versionPolicy
		case "advertise":
			file.Network.AdvertisedAddress = f.advertise
		case "key":
			file.Identity.KeyFile = absPath(f.keyFile)
		case "scheme":
			file.Identity.Scheme = f.scheme
		case "bootnode":
			file.Bootnodes = f.bootnodes
		case "listen":
			file.ListenAddress = f.listen
		case "timeout":
			file.Timeout = f.timeout
		case "max-frame-size":
			if f.maxFrameSize > 1<<32-1 {
				err = fmt.Errorf("max-frame-size %d exceeds 32 bits", f.maxFrameSize)
				return
			}
			file.MaxFrameSize = uint32(f.maxFrameSize)
		case "max-connections":
			file.MaxConnections = f.maxConnections
		case "redial-interval":
			file.RedialInterval = f.redial
		case "metrics-addr":
			file.MetricsAddress = f.metricsAddr
		case "protocol-log":
			file.ProtocolLog = f.protocolLog
		}
	})
	return err
}

// absPath anchors a path given on the command line to the working directory,
// so it is not resolved against the configuration file's directory.
func absPath(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
