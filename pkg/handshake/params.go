package handshake

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/schultz-net/schultz-go/pkg/chainspec"
	"github.com/schultz-net/schultz-go/pkg/version"
	"github.com/schultz-net/schultz-go/pkg/wire"
)

// Params are the network parameters a node advertises and requires.
type Params struct {
	NetworkName       string
	ProtocolVersion   version.Version
	ChainForkHash     chainspec.Digest
	AdvertisedAddress string

	// Encoding is used for outgoing messages. Peers may answer in any
	// supported encoding.
	Encoding wire.Encoding

	VersionPolicy version.Policy
}

// Validate checks that the parameters can populate an outgoing message.
func (p Params) Validate() error {
	var errs []error
	if p.NetworkName == "" {
		errs = append(errs, errors.New("network name is required"))
	} else if len(p.NetworkName) > wire.MaxNetworkNameLen {
		errs = append(errs, fmt.Errorf("network name exceeds %d bytes", wire.MaxNetworkNameLen))
	}
	if len(p.AdvertisedAddress) > wire.MaxAddressLen {
		errs = append(errs, fmt.Errorf("advertised address exceeds %d bytes", wire.MaxAddressLen))
	}
	if p.Encoding != 0 && !p.Encoding.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %s", wire.ErrUnsupportedEncoding, p.Encoding))
	}
	return multierr.Combine(errs...)
}

// check runs the parameter checks against a peer message in their fixed
// order: network name, protocol version, chain fork hash.
func (p Params) check(peer *wire.HandshakeMessage) error {
	if peer.NetworkName != p.NetworkName {
		return &MismatchError{Err: ErrNetworkMismatch, Local: p.NetworkName, Peer: peer.NetworkName}
	}
	if err := version.Check(p.ProtocolVersion, peer.ProtocolVersion, p.VersionPolicy); err != nil {
		return err
	}
	if !peer.ChainForkHash.Equal(p.ChainForkHash) {
		return &MismatchError{
			Err:   ErrChainForkMismatch,
			Local: p.ChainForkHash.String(),
			Peer:  peer.ChainForkHash.String(),
		}
	}
	return nil
}

func (p Params) encoding() wire.Encoding {
	if p.Encoding == 0 {
		return wire.DefaultEncoding
	}
	return p.Encoding
}
