// Package wire defines the handshake message and its two payload encodings.
//
// Every payload starts with a CBOR unsigned integer declaring the encoding of
// the body that follows. CBOR is the lowest common denominator: a peer can
// always read the declaration, then switch decoders for the rest.
//
// # Encodings
//
//   - EncodingCBOR: a self-describing CBOR map with integer keys (RFC 8949).
//   - EncodingCompact: a fixed-schema protobuf wire format body with fixed
//     field numbers and no schema file.
//
// Unknown declarations fail with ErrUnsupportedEncoding. Payloads are
// carried in length-prefixed frames; see package transport.
package wire
