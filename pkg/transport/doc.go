// Package transport provides the secure channel for the schultz handshake.
//
// The transport layer handles:
//   - Raw TCP dialing and an accept loop for inbound connections
//   - TLS 1.3 with mutual authentication by self-signed node certificates
//   - Session bound challenge derivation
//   - Length-prefixed message framing
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Handshake message (wire)     │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│         TLS 1.3                │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Peer Authentication
//
// TLS chain verification is disabled on both sides. Once the TLS handshake
// completes, the single certificate the peer presented is run through a
// CertValidator (normally cert.Provider), and only the key it returns is
// trusted. Peers presenting no certificate or a chain are rejected with
// cert.ErrMalformedCertificate.
//
// # Challenge
//
// Challenge exports 64 bytes of keying material under ExporterLabel and
// expands them with HKDF-SHA512, labeled with the signing role. Both ends
// compute the same value without an extra round trip.
package transport
