// Package handshake runs one handshake attempt per connection and reduces it
// to a single Outcome.
//
// An attempt moves through the states
//
//	IDLE → TLS_ESTABLISHING → TLS_ESTABLISHED → MESSAGE_SENT / MESSAGE_RECEIVED → VALIDATING → TERMINAL
//
// Sending the local message and receiving the peer's run concurrently;
// validation starts only after both finished. The peer message is checked
// in a fixed order, and the first failing check decides the outcome:
//
//  1. signature over the session challenge, against the key from the peer
//     certificate (KindRejectedBadSignature)
//  2. network name (KindRejectedIncompatibleNetwork)
//  3. protocol version under the configured policy
//     (KindRejectedIncompatibleVersion)
//  4. chain fork hash (KindRejectedIncompatibleNetwork)
//
// Every attempt is bounded by the engine timeout, owns its socket, and
// closes it before Run returns. Errors never escape as panics; they are
// mapped with Classify.
//
// Basic usage:
//
//	engine, err := handshake.NewEngine(handshake.Config{
//	    Identity:     id,
//	    Certificates: handshake.StaticCertificate(c),
//	    Validator:    provider,
//	    Params:       params,
//	})
//	outcome := engine.Connect(ctx, uuid.NewString(), "10.0.0.1:35000")
//	if !outcome.Accepted() {
//	    fmt.Println(outcome.Kind, outcome.Reason)
//	}
package handshake
