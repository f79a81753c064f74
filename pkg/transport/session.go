package transport

import (
	"crypto/sha512"
	"crypto/tls"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Challenge derivation parameters.
const (
	// ExporterLabel is the TLS exporter label for handshake challenges.
	ExporterLabel = "EXPORTER-schultz-handshake"

	// ChallengeSize is the size of a derived challenge in bytes.
	ChallengeSize = 64

	challengeInfo = "schultz handshake challenge v1|"
)

// Challenge derives the bytes a node in the signer role signs to prove
// possession of its key on this TLS session.
//
// Keying material is exported from the session (RFC 8446 section 7.5), so
// both ends derive identical values without an extra exchange, and a
// signature cannot be replayed on another session. The signer's role is
// mixed in so a peer cannot reflect our own signature back at us.
func Challenge(state tls.ConnectionState, signer Role) ([]byte, error) {
	if err := VerifyTLS13(state); err != nil {
		return nil, err
	}

	ekm, err := state.ExportKeyingMaterial(ExporterLabel, nil, sha512.Size)
	if err != nil {
		return nil, fmt.Errorf("export keying material: %w", err)
	}

	r := hkdf.New(sha512.New, ekm, nil, []byte(challengeInfo+signer.String()))
	challenge := make([]byte, ChallengeSize)
	if _, err := io.ReadFull(r, challenge); err != nil {
		return nil, fmt.Errorf("derive challenge: %w", err)
	}
	return challenge, nil
}
