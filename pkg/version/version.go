// Package version provides protocol version parsing, compatibility checks,
// and ALPN helpers.
package version

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version advertised by default.
const Current = "1.0.0"

// Version is a parsed "major.minor.patch" protocol version.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// MustParse is Parse for constants; it panics on invalid input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Parse parses a "major.minor.patch" version string. A missing patch
// component ("1.4") is read as zero.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	var out [3]uint32
	names := [3]string{"major", "minor", "patch"}
	for i, p := range parts {
		if p == "" {
			return Version{}, fmt.Errorf("invalid version %q: empty %s component", s, names[i])
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: bad %s component", s, names[i])
		}
		out[i] = uint32(n)
	}
	return Version{Major: out[0], Minor: out[1], Patch: out[2]}, nil
}

// String returns the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether v is the zero version.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to,
// or after other.
func (v Version) Compare(other Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, other.Patch)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Policy selects the version compatibility rule.
type Policy uint8

const (
	// PolicyMajorOnly accepts any peer with the same major version. The rule
	// is symmetric: both sides of a connection reach the same verdict.
	PolicyMajorOnly Policy = iota

	// PolicyStrictMinor additionally requires the local minor version to be
	// at least the peer's.
	PolicyStrictMinor
)

// String returns the policy name as used in configuration files.
func (p Policy) String() string {
	switch p {
	case PolicyMajorOnly:
		return "major"
	case PolicyStrictMinor:
		return "strict-minor"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy parses a policy name. The empty string selects PolicyMajorOnly.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "major", "major-only":
		return PolicyMajorOnly, nil
	case "strict-minor", "strict":
		return PolicyStrictMinor, nil
	default:
		return 0, fmt.Errorf("unknown version policy %q", s)
	}
}

// ErrIncompatible is wrapped by every IncompatibleError.
var ErrIncompatible = errors.New("incompatible protocol version")

// IncompatibleError carries both sides of a failed version check.
type IncompatibleError struct {
	Local  Version
	Peer   Version
	Policy Policy
	Reason string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("incompatible protocol version: local %s, peer %s (%s)", e.Local, e.Peer, e.Reason)
}

func (e *IncompatibleError) Unwrap() error {
	return ErrIncompatible
}

// Check returns nil if a peer advertising peer is compatible with local
// under the given policy, or an *IncompatibleError otherwise.
//
// PolicyMajorOnly is symmetric: both ends of a connection reach the same
// verdict. PolicyStrictMinor is not. Between 1.2.0 and 1.1.0 the older node
// rejects and the newer one accepts, so each side reports a different
// outcome for the same attempt. Deployments that want that asymmetric rule
// opt into it explicitly.
func Check(local, peer Version, policy Policy) error {
	if local.Major != peer.Major {
		return &IncompatibleError{Local: local, Peer: peer, Policy: policy, Reason: "major version differs"}
	}
	if policy == PolicyStrictMinor && local.Minor < peer.Minor {
		return &IncompatibleError{Local: local, Peer: peer, Policy: policy, Reason: "peer minor version is newer"}
	}
	return nil
}

// ALPNProtocol returns the ALPN protocol string for a major version: "schultz/N".
func ALPNProtocol(major uint32) string {
	return fmt.Sprintf("schultz/%d", major)
}

// MajorFromALPN extracts the major version from an ALPN protocol string.
func MajorFromALPN(alpn string) (uint32, error) {
	suffix, ok := strings.CutPrefix(alpn, "schultz/")
	if !ok {
		return 0, fmt.Errorf("not a schultz ALPN protocol: %q", alpn)
	}
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in ALPN: %q", alpn)
	}

	major, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in ALPN %q: %w", alpn, err)
	}

	return uint32(major), nil
}

// SupportedALPNProtocols returns the ALPN protocol strings offered during the
// TLS handshake. Currently only major version 1.
func SupportedALPNProtocols() []string {
	return []string{ALPNProtocol(MustParse(Current).Major)}
}
