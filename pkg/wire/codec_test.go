package wire

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/schultz-net/schultz-go/pkg/chainspec"
	"github.com/schultz-net/schultz-go/pkg/version"
)

func testMessage() *HandshakeMessage {
	return &HandshakeMessage{
		NetworkName:      "net-1",
		ProtocolVersion:  version.MustParse("1.2.0"),
		ChainForkHash:    chainspec.Hash([]byte("chainspec")),
		ListeningAddress: "10.0.0.1:35000",
		Timestamp:        NormalizeTime(time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)),
		Signature:        bytes.Repeat([]byte{0xAB}, 139),
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HandshakeMessage)
	}{
		{"full", func(*HandshakeMessage) {}},
		{"no listening address", func(m *HandshakeMessage) { m.ListeningAddress = "" }},
		{"zero version", func(m *HandshakeMessage) { m.ProtocolVersion = version.Version{} }},
		{"max version", func(m *HandshakeMessage) {
			m.ProtocolVersion = version.Version{Major: 1<<32 - 1, Minor: 1<<32 - 1, Patch: 1<<32 - 1}
		}},
		{"zero fork hash", func(m *HandshakeMessage) { m.ChainForkHash = chainspec.Digest{} }},
		{"before epoch", func(m *HandshakeMessage) { m.Timestamp = NormalizeTime(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)) }},
		{"unix epoch", func(m *HandshakeMessage) { m.Timestamp = time.UnixMilli(0).UTC() }},
		{"unicode network", func(m *HandshakeMessage) { m.NetworkName = "réseau-π" }},
		{"long fields", func(m *HandshakeMessage) {
			m.NetworkName = strings.Repeat("n", MaxNetworkNameLen)
			m.ListeningAddress = strings.Repeat("a", MaxAddressLen)
			m.Signature = bytes.Repeat([]byte{1}, MaxSignatureLen)
		}},
	}

	for _, enc := range []Encoding{EncodingCBOR, EncodingCompact} {
		for _, tt := range tests {
			t.Run(enc.String()+"/"+tt.name, func(t *testing.T) {
				msg := testMessage()
				tt.mutate(msg)

				payload, err := Encode(msg, enc)
				require.NoError(t, err)

				decoded, declared, err := Decode(payload)
				require.NoError(t, err)
				assert.Equal(t, enc, declared)
				assert.Equal(t, msg, decoded)
				assert.True(t, msg.Equal(decoded))
			})
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	for _, enc := range []Encoding{EncodingCBOR, EncodingCompact} {
		a, err := Encode(testMessage(), enc)
		require.NoError(t, err)
		b, err := Encode(testMessage(), enc)
		require.NoError(t, err)
		assert.Equal(t, a, b, enc.String())
	}
}

func TestEncodingDeclarationIsCBOR(t *testing.T) {
	payload, err := Encode(testMessage(), EncodingCompact)
	require.NoError(t, err)

	var tag uint64
	rest, err := decMode.UnmarshalFirst(payload, &tag)
	require.NoError(t, err)
	assert.Equal(t, uint64(EncodingCompact), tag)
	assert.NotEmpty(t, rest)
}

func TestEncodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HandshakeMessage)
	}{
		{"empty network", func(m *HandshakeMessage) { m.NetworkName = "" }},
		{"long network", func(m *HandshakeMessage) { m.NetworkName = strings.Repeat("n", MaxNetworkNameLen+1) }},
		{"long address", func(m *HandshakeMessage) { m.ListeningAddress = strings.Repeat("a", MaxAddressLen+1) }},
		{"missing signature", func(m *HandshakeMessage) { m.Signature = nil }},
		{"long signature", func(m *HandshakeMessage) { m.Signature = make([]byte, MaxSignatureLen+1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage()
			tt.mutate(msg)
			_, err := Encode(msg, EncodingCBOR)
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}

	_, err := Encode(testMessage(), Encoding(9))
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestDecodeUnsupportedEncoding(t *testing.T) {
	for _, tag := range []uint64{0, 3, 255, 256, 1 << 40} {
		header, err := Marshal(tag)
		require.NoError(t, err)
		body, err := Marshal(toCBOR(testMessage()))
		require.NoError(t, err)

		_, _, err = Decode(append(header, body...))
		assert.ErrorIs(t, err, ErrUnsupportedEncoding, "tag %d", tag)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cborPayload, err := Encode(testMessage(), EncodingCBOR)
	require.NoError(t, err)
	compactPayload, err := Encode(testMessage(), EncodingCompact)
	require.NoError(t, err)

	cborHeader, _ := Marshal(uint64(EncodingCBOR))
	compactHeader, _ := Marshal(uint64(EncodingCompact))

	inputs := map[string][]byte{
		"empty":             nil,
		"text declaration":  []byte{0x61, 'x'},
		"header only cbor":  cborHeader,
		"truncated cbor":    cborPayload[:len(cborPayload)-5],
		"truncated compact": compactPayload[:len(compactPayload)-5],
		"trailing cbor":     append(append([]byte(nil), cborPayload...), 0x00),
		"cbor body as compact": append(append([]byte(nil), compactHeader...),
			cborPayload[len(cborHeader):]...),
		"short fork hash": func() []byte {
			cm := toCBOR(testMessage())
			cm.ChainForkHash = cm.ChainForkHash[:31]
			body, _ := Marshal(cm)
			return append(append([]byte(nil), cborHeader...), body...)
		}(),
		"missing version and timestamp": cborKeys(t, func(m map[int]any) {
			delete(m, 2)
			delete(m, 5)
		}),
		"missing network name": cborKeys(t, func(m map[int]any) { delete(m, 1) }),
		"missing fork hash":    cborKeys(t, func(m map[int]any) { delete(m, 3) }),
		"missing timestamp":    cborKeys(t, func(m map[int]any) { delete(m, 5) }),
		"missing signature":    cborKeys(t, func(m map[int]any) { delete(m, 6) }),
		"null network name":    cborKeys(t, func(m map[int]any) { m[1] = nil }),
		"one version part":     cborKeys(t, func(m map[int]any) { m[2] = []uint32{1} }),
		"five version parts":   cborKeys(t, func(m map[int]any) { m[2] = []uint32{1, 2, 3, 4, 5} }),
		"version overflow":     cborKeys(t, func(m map[int]any) { m[2] = []uint64{1 << 40, 0, 0} }),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, _, err := Decode(in)
				assert.ErrorIs(t, err, ErrMalformedMessage)
			})
		})
	}
}

// cborKeys builds an EncodingCBOR payload from the test message's key map
// after mutate has edited it.
func cborKeys(t *testing.T, mutate func(map[int]any)) []byte {
	t.Helper()
	msg := testMessage()
	v := msg.ProtocolVersion
	m := map[int]any{
		1: msg.NetworkName,
		2: []uint32{v.Major, v.Minor, v.Patch},
		3: msg.ChainForkHash[:],
		4: msg.ListeningAddress,
		5: msg.Timestamp.UnixMilli(),
		6: msg.Signature,
	}
	mutate(m)

	header, err := Marshal(uint64(EncodingCBOR))
	require.NoError(t, err)
	body, err := Marshal(m)
	require.NoError(t, err)
	return append(header, body...)
}

func TestCBORKeyMapMatchesEncoder(t *testing.T) {
	decoded, enc, err := Decode(cborKeys(t, func(map[int]any) {}))
	require.NoError(t, err)
	assert.Equal(t, EncodingCBOR, enc)
	assert.Equal(t, testMessage(), decoded)
}

func TestCompactUnknownFieldSkipped(t *testing.T) {
	payload, err := Encode(testMessage(), EncodingCompact)
	require.NoError(t, err)

	payload = protowire.AppendTag(payload, 42, protowire.BytesType)
	payload = protowire.AppendString(payload, "future")

	decoded, _, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, testMessage(), decoded)
}

func TestCompactDuplicateFieldRejected(t *testing.T) {
	payload, err := Encode(testMessage(), EncodingCompact)
	require.NoError(t, err)

	payload = protowire.AppendTag(payload, fieldNetworkName, protowire.BytesType)
	payload = protowire.AppendString(payload, "net-2")

	_, _, err = Decode(payload)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestCompactWrongWireType(t *testing.T) {
	header, _ := Marshal(uint64(EncodingCompact))
	payload := protowire.AppendTag(header, fieldNetworkName, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 7)

	_, _, err := Decode(payload)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		input   string
		want    Encoding
		wantErr bool
	}{
		{"", DefaultEncoding, false},
		{"cbor", EncodingCBOR, false},
		{"COMPACT", EncodingCompact, false},
		{"json", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedEncoding)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	assert.Equal(t, "encoding(7)", Encoding(7).String())
	assert.False(t, Encoding(0).IsValid())
}
