// Package log provides structured protocol logging for handshake attempts.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, handshake).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace of every attempt, so a rejected
// peer can be diagnosed without packet captures.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Both console and a binary capture file
//	file, _ := log.NewFileLogger("/var/log/schultz/probe.hlog")
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), file)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent), channel state changes
//   - Wire: decoded handshake messages (MessageEvent)
//   - Handshake: state transitions (StateChangeEvent) and the terminal
//     result (OutcomeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events. The schultz-log CLI tool
// provides viewing, filtering and statistics.
package log
