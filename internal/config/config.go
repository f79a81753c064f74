// Package config loads the node configuration: a YAML file, optionally
// overridden by command-line flags, resolved into handshake parameters and
// a loaded identity.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/chainspec"
	"github.com/schultz-net/schultz-go/pkg/handshake"
	"github.com/schultz-net/schultz-go/pkg/identity"
	"github.com/schultz-net/schultz-go/pkg/transport"
	"github.com/schultz-net/schultz-go/pkg/version"
	"github.com/schultz-net/schultz-go/pkg/wire"
)

// File is the on-disk configuration.
type File struct {
	Network  Network  `yaml:"network"`
	Identity Identity `yaml:"identity"`

	// ListenAddress enables inbound handshakes when set.
	ListenAddress string   `yaml:"listen_address,omitempty"`
	Bootnodes     []string `yaml:"bootnodes,omitempty"`

	Timeout      time.Duration `yaml:"timeout,omitempty"`
	MaxFrameSize uint32        `yaml:"max_frame_size,omitempty"`

	// MaxConnections bounds concurrent inbound attempts (0 = unlimited).
	MaxConnections int `yaml:"max_connections,omitempty"`

	// RedialInterval re-probes bootnodes while listening (0 = dial once).
	RedialInterval time.Duration `yaml:"redial_interval,omitempty"`

	MetricsAddress string `yaml:"metrics_address,omitempty"`

	// ProtocolLog is a path for the CBOR protocol event log.
	ProtocolLog string `yaml:"protocol_log,omitempty"`
}

// Network holds the parameters advertised to peers.
type Network struct {
	Name            string `yaml:"name"`
	ProtocolVersion string `yaml:"protocol_version,omitempty"`

	// Chainspec is a file whose BLAKE2b-256 digest is the chain fork hash.
	// Exclusive with ChainForkHash.
	Chainspec     string `yaml:"chainspec,omitempty"`
	ChainForkHash string `yaml:"chain_fork_hash,omitempty"`

	AdvertisedAddress string `yaml:"advertised_address,omitempty"`
	Encoding          string `yaml:"encoding,omitempty"`
	VersionPolicy     string `yaml:"version_policy,omitempty"`
}

// Identity locates the node key.
type Identity struct {
	// KeyFile is a PEM or DER private key. Empty generates a fresh key.
	KeyFile string `yaml:"key_file,omitempty"`
	Scheme  string `yaml:"scheme,omitempty"`

	// CertificateLifetime is the validity of issued certificates.
	CertificateLifetime time.Duration `yaml:"certificate_lifetime,omitempty"`

	// AcceptedSchemes lists key schemes accepted from peers (default: scheme).
	AcceptedSchemes []string `yaml:"accepted_schemes,omitempty"`
}

// Config is the resolved configuration.
type Config struct {
	Params handshake.Params

	Identity *identity.Identity

	// IdentityGenerated is true when no key file was configured.
	IdentityGenerated bool

	AcceptedSchemes     []identity.Scheme
	CertificateLifetime time.Duration

	ListenAddress  string
	Bootnodes      []string
	Timeout        time.Duration
	MaxFrameSize   uint32
	MaxConnections int
	RedialInterval time.Duration
	MetricsAddress string
	ProtocolLog    string
}

// Error is a configuration error. It is fatal for the whole process.
type Error struct {
	// File is the configuration file, if any.
	File string

	// Field is the offending key, if known.
	Field string

	// Cause is the underlying error.
	Cause error
}

func (e *Error) Error() string {
	var prefix string
	switch {
	case e.File != "" && e.Field != "":
		prefix = e.File + ": " + e.Field + ": "
	case e.File != "":
		prefix = e.File + ": "
	case e.Field != "":
		prefix = e.Field + ": "
	}
	return "configuration error: " + prefix + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsConfigurationError reports whether err is or wraps an *Error.
func IsConfigurationError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Default returns a file with default values.
func Default() *File {
	return &File{
		Network: Network{
			ProtocolVersion: version.Current,
			Encoding:        wire.DefaultEncoding.String(),
			VersionPolicy:   version.PolicyMajorOnly.String(),
		},
		Identity: Identity{
			Scheme:              identity.DefaultScheme.String(),
			CertificateLifetime: cert.DefaultLifetime,
		},
		Timeout:      handshake.DefaultTimeout,
		MaxFrameSize: transport.DefaultMaxFrameSize,
	}
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Cause: fmt.Errorf("parse YAML: %w", err)}
	}
	return f, nil
}

// LoadFile reads and parses a configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{File: path, Cause: err}
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.File = path
		}
		return nil, err
	}
	return f, nil
}

// Resolve validates f and loads what it references. Relative paths are
// resolved against baseDir. All problems are reported together.
func (f *File) Resolve(baseDir string) (*Config, error) {
	cfg := &Config{
		ListenAddress:       f.ListenAddress,
		Bootnodes:           f.Bootnodes,
		Timeout:             f.Timeout,
		MaxFrameSize:        f.MaxFrameSize,
		MaxConnections:      f.MaxConnections,
		RedialInterval:      f.RedialInterval,
		MetricsAddress:      f.MetricsAddress,
		ProtocolLog:         f.ProtocolLog,
		CertificateLifetime: f.Identity.CertificateLifetime,
	}

	var errs error
	fieldErr := func(field string, err error) {
		errs = multierr.Append(errs, &Error{Field: field, Cause: err})
	}

	// Network parameters.
	n := f.Network
	cfg.Params.NetworkName = n.Name
	cfg.Params.AdvertisedAddress = n.AdvertisedAddress
	if n.Name == "" {
		fieldErr("network.name", errors.New("is required"))
	}
	if v, err := version.Parse(n.ProtocolVersion); err != nil {
		fieldErr("network.protocol_version", err)
	} else {
		cfg.Params.ProtocolVersion = v
	}
	if enc, err := wire.ParseEncoding(n.Encoding); err != nil {
		fieldErr("network.encoding", err)
	} else {
		cfg.Params.Encoding = enc
	}
	if p, err := version.ParsePolicy(n.VersionPolicy); err != nil {
		fieldErr("network.version_policy", err)
	} else {
		cfg.Params.VersionPolicy = p
	}
	switch {
	case n.Chainspec != "" && n.ChainForkHash != "":
		fieldErr("network.chainspec", errors.New("chainspec and chain_fork_hash are exclusive"))
	case n.Chainspec != "":
		d, err := chainspec.HashFile(resolvePath(baseDir, n.Chainspec))
		if err != nil {
			fieldErr("network.chainspec", err)
		}
		cfg.Params.ChainForkHash = d
	case n.ChainForkHash != "":
		d, err := chainspec.ParseDigest(n.ChainForkHash)
		if err != nil {
			fieldErr("network.chain_fork_hash", err)
		}
		cfg.Params.ChainForkHash = d
	default:
		fieldErr("network.chain_fork_hash", errors.New("chainspec or chain_fork_hash is required"))
	}
	if n.AdvertisedAddress != "" {
		if _, _, err := net.SplitHostPort(n.AdvertisedAddress); err != nil {
			fieldErr("network.advertised_address", err)
		}
	}

	// Transport.
	if f.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(f.ListenAddress); err != nil {
			fieldErr("listen_address", err)
		}
	}
	for i, b := range f.Bootnodes {
		if _, _, err := net.SplitHostPort(b); err != nil {
			fieldErr(fmt.Sprintf("bootnodes[%d]", i), err)
		}
	}
	if f.ListenAddress == "" && len(f.Bootnodes) == 0 {
		fieldErr("bootnodes", errors.New("nothing to do: set bootnodes or listen_address"))
	}
	if f.Timeout <= 0 {
		fieldErr("timeout", fmt.Errorf("must be positive, got %s", f.Timeout))
	}
	if f.MaxFrameSize == 0 {
		fieldErr("max_frame_size", errors.New("must be positive"))
	}
	if f.MaxConnections < 0 {
		fieldErr("max_connections", errors.New("must not be negative"))
	}
	if f.RedialInterval < 0 {
		fieldErr("redial_interval", errors.New("must not be negative"))
	}
	if f.Identity.CertificateLifetime <= 0 || f.Identity.CertificateLifetime > cert.MaxLifetime {
		fieldErr("identity.certificate_lifetime",
			fmt.Errorf("must be in (0, %s], got %s", cert.MaxLifetime, f.Identity.CertificateLifetime))
	}

	// Identity.
	scheme, err := identity.ParseScheme(f.Identity.Scheme)
	if err != nil {
		fieldErr("identity.scheme", err)
	} else {
		cfg.AcceptedSchemes = []identity.Scheme{scheme}
		if f.Identity.KeyFile == "" {
			cfg.Identity, err = identity.Generate(scheme)
			cfg.IdentityGenerated = true
		} else {
			cfg.Identity, err = identity.ReadKeyFile(resolvePath(baseDir, f.Identity.KeyFile), scheme)
		}
		if err != nil {
			fieldErr("identity.key_file", err)
		}
	}
	if len(f.Identity.AcceptedSchemes) > 0 {
		cfg.AcceptedSchemes = cfg.AcceptedSchemes[:0]
		for _, s := range f.Identity.AcceptedSchemes {
			parsed, err := identity.ParseScheme(s)
			if err != nil {
				fieldErr("identity.accepted_schemes", err)
				continue
			}
			cfg.AcceptedSchemes = append(cfg.AcceptedSchemes, parsed)
		}
	}

	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

// Load reads a file (or starts from defaults when path is empty), applies
// override, and resolves the result.
func Load(path string, override func(*File)) (*Config, error) {
	f := Default()
	baseDir := "."
	if path != "" {
		var err error
		if f, err = LoadFile(path); err != nil {
			return nil, err
		}
		baseDir = filepath.Dir(path)
	}
	if override != nil {
		override(f)
	}
	cfg, err := f.Resolve(baseDir)
	if err != nil && path != "" {
		for _, e := range multierr.Errors(err) {
			var ce *Error
			if errors.As(e, &ce) {
				ce.File = path
			}
		}
	}
	return cfg, err
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
