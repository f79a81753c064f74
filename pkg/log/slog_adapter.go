package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level. Error and outcome
// events are written at Info level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("attempt", event.AttemptID),
		slog.String("role", event.LocalRole.String()),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.PeerFingerprint != "" {
		attrs = append(attrs, slog.String("peer", event.PeerFingerprint))
	}

	level := slog.LevelDebug

	// Add type-specific attributes
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("encoding", event.Message.Encoding),
			slog.String("network", event.Message.NetworkName),
			slog.String("version", event.Message.ProtocolVersion),
			slog.String("fork_hash", event.Message.ChainForkHash),
			slog.Time("sent_at", event.Message.SentAt),
		)
		if event.Message.ListeningAddress != "" {
			attrs = append(attrs, slog.String("listening", event.Message.ListeningAddress))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Outcome != nil:
		level = slog.LevelInfo
		attrs = append(attrs,
			slog.String("outcome", event.Outcome.Kind),
			slog.Duration("duration", event.Outcome.Duration),
		)
		if event.Outcome.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Outcome.Reason))
		}
		if event.Outcome.LocalValue != "" || event.Outcome.PeerValue != "" {
			attrs = append(attrs,
				slog.String("local", event.Outcome.LocalValue),
				slog.String("peer_value", event.Outcome.PeerValue),
			)
		}
	case event.Error != nil:
		level = slog.LevelInfo
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
