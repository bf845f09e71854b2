package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/network/compressor"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/internal/network/serializer"
)

type echoMessage struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func newTestCodec(t *testing.T, compress bool) Codec {
	t.Helper()

	var comp compressor.Compressor
	if compress {
		zc, err := compressor.NewZstdCompressor()
		require.NoError(t, err)
		t.Cleanup(zc.Close)
		comp = zc
	}

	c, err := New(Options{
		Framer:            framer.NewLengthPrefixedFramer(0),
		Serializer:        serializer.JSONSerializer{},
		Compressor:        comp,
		EnableCompression: compress,
	})
	require.NoError(t, err)
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newTestCodec(t, false)

	var buf bytes.Buffer
	header := &framer.Header{Op: 2, Seq: 9, Timestamp: 1700000000000}
	require.NoError(t, c.Encode(&buf, header, &echoMessage{Name: "alice", Text: "hi"}))

	var got echoMessage
	decoded, err := c.Decode(&buf, &got)
	require.NoError(t, err)
	require.EqualValues(t, 2, decoded.Op)
	require.EqualValues(t, 9, decoded.Seq)
	require.Zero(t, decoded.Flags&framer.FlagCompressed)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, "hi", got.Text)
}

func TestEncodeDecodeCompressed(t *testing.T) {
	c := newTestCodec(t, true)

	var buf bytes.Buffer
	long := make([]byte, 0, 4096)
	for i := 0; i < 512; i++ {
		long = append(long, []byte("chatroom")...)
	}
	header := &framer.Header{Op: 2, Seq: 1}
	require.NoError(t, c.Encode(&buf, header, &echoMessage{Name: "bob", Text: string(long)}))
	require.NotZero(t, header.Flags&framer.FlagCompressed)

	var got echoMessage
	decoded, err := c.Decode(&buf, &got)
	require.NoError(t, err)
	require.NotZero(t, decoded.Flags&framer.FlagCompressed)
	require.Equal(t, string(long), got.Text)
}

func TestDecodeCompressedWhileDisabled(t *testing.T) {
	writer := newTestCodec(t, true)
	reader := newTestCodec(t, false)

	var buf bytes.Buffer
	require.NoError(t, writer.Encode(&buf, &framer.Header{Op: 2}, &echoMessage{Text: "payload"}))

	var got echoMessage
	_, err := reader.Decode(&buf, &got)
	require.Error(t, err)
}

func TestDecodeRaw(t *testing.T) {
	c := newTestCodec(t, false)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, &framer.Header{Op: 4}, &echoMessage{Name: "carol"}))

	header, payload, err := c.DecodeRaw(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 4, header.Op)
	require.Contains(t, string(payload), "carol")
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Serializer: serializer.JSONSerializer{}})
	require.Error(t, err)

	_, err = New(Options{Framer: framer.NewLengthPrefixedFramer(0)})
	require.Error(t, err)
}
