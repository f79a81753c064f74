package node

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/identity"
)

// renewalWindow is how long before expiry a certificate is replaced. Short
// lifetimes renew at half-life instead.
const renewalWindow = time.Hour

// renewingCertificate issues the node certificate on first use and reissues
// it when it is no longer valid or about to expire. The identity never
// changes, so the fingerprint stays stable across reissues.
type renewingCertificate struct {
	provider    *cert.Provider
	id          *identity.Identity
	renewBefore time.Duration

	current atomic.Pointer[cert.Certificate]
	mu      sync.Mutex
	issued  atomic.Uint64
}

func newRenewingCertificate(p *cert.Provider, id *identity.Identity, lifetime time.Duration) *renewingCertificate {
	return &renewingCertificate{
		provider:    p,
		id:          id,
		renewBefore: min(renewalWindow, lifetime/2),
	}
}

func (r *renewingCertificate) fresh(c *cert.Certificate) bool {
	now := r.provider.Now()
	return c != nil && c.ValidAt(now) && !c.ExpiresWithin(now, r.renewBefore)
}

// Certificate implements handshake.CertificateSource.
func (r *renewingCertificate) Certificate() (*cert.Certificate, error) {
	if c := r.current.Load(); r.fresh(c) {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.current.Load(); r.fresh(c) {
		return c, nil
	}

	c, err := r.provider.Issue(r.id)
	if err != nil {
		return nil, err
	}
	r.current.Store(c)
	r.issued.Add(1)
	return c, nil
}
