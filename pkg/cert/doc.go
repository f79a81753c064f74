// Package cert issues and validates the self-signed transport certificates
// that bind a node's TLS endpoint to its identity key.
//
// Every node certificate has serial number 1, identical subject and issuer
// names, and carries the node's public key twice: once as the SPKI and once
// as a base58 subject attribute (OIDEmbeddedKey). A peer certificate is only
// trusted after Provider.Validate has checked its structure, self-signature,
// validity window and embedded key:
//
//	p := cert.NewProvider()
//	c, err := p.Issue(id)
//	...
//	peerKey, err := p.Validate(rawPeerCert)
//	if errors.Is(err, cert.ErrMalformedCertificate) {
//	    // reject the peer
//	}
package cert
