// Package identity holds the node's asymmetric identity key.
//
// An Identity is created once at process start, either from a key file or
// freshly generated, and is shared read-only by every handshake attempt.
// Its Fingerprint (SHA-512 of the PKIX public key) is the peer's logical
// address in logs and reports.
//
// Signatures are always made over a session-bound challenge, never over
// peer-supplied bytes directly.
package identity
