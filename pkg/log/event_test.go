package log

import (
	"testing"
	"time"

	"github.com/schultz-net/schultz-go/pkg/chainspec"
	"github.com/schultz-net/schultz-go/pkg/version"
	"github.com/schultz-net/schultz-go/pkg/wire"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(99).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerHandshake.String(), "HANDSHAKE"},
		{Layer(99).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{CategoryOutcome.String(), "OUTCOME"},
		{Category(99).String(), "UNKNOWN"},
		{RoleClient.String(), "CLIENT"},
		{RoleServer.String(), "SERVER"},
		{Role(99).String(), "UNKNOWN"},
		{StateEntityChannel.String(), "CHANNEL"},
		{StateEntityHandshake.String(), "HANDSHAKE"},
		{StateEntity(99).String(), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewMessageEvent(t *testing.T) {
	msg := &wire.HandshakeMessage{
		NetworkName:      "net-1",
		ProtocolVersion:  version.MustParse("1.2.0"),
		ChainForkHash:    chainspec.Hash([]byte("chainspec")),
		ListeningAddress: "10.0.0.1:35000",
		Timestamp:        wire.NormalizeTime(time.Now()),
		Signature:        make([]byte, 139),
	}

	ev := NewMessageEvent(msg, wire.EncodingCompact)

	if ev.Encoding != "compact" {
		t.Errorf("Encoding = %q, want %q", ev.Encoding, "compact")
	}
	if ev.NetworkName != "net-1" || ev.ProtocolVersion != "1.2.0" {
		t.Errorf("unexpected network/version %q/%q", ev.NetworkName, ev.ProtocolVersion)
	}
	if ev.ChainForkHash != msg.ChainForkHash.String() {
		t.Errorf("ChainForkHash = %q", ev.ChainForkHash)
	}
	if ev.SignatureSize != 139 {
		t.Errorf("SignatureSize = %d, want 139", ev.SignatureSize)
	}
	if !ev.SentAt.Equal(msg.Timestamp) {
		t.Errorf("SentAt = %v, want %v", ev.SentAt, msg.Timestamp)
	}
}
