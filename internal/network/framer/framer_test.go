package framer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrame(t *testing.T) {
	f := NewLengthPrefixedFramer(0)

	var buf bytes.Buffer
	env := &Envelope{
		Header: Header{
			Op:        7,
			Seq:       3,
			Flags:     FlagCompressed,
			Timestamp: 1700000000000,
		},
		Payload: []byte("hello"),
	}
	require.NoError(t, f.WriteFrame(&buf, env))
	require.EqualValues(t, 5, env.Header.Size)

	got, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, env.Header, got.Header)
	require.Equal(t, []byte("hello"), got.Payload)
}

func TestWriteReadEmptyPayload(t *testing.T) {
	f := NewLengthPrefixedFramer(0)

	var buf bytes.Buffer
	env := &Envelope{Header: Header{Op: 1, Seq: 1}}
	require.NoError(t, f.WriteFrame(&buf, env))

	got, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.Header.Size)
	require.Empty(t, got.Payload)
}

func TestWriteFrameNil(t *testing.T) {
	f := NewLengthPrefixedFramer(0)
	require.Error(t, f.WriteFrame(&bytes.Buffer{}, nil))
}

func TestMaxFrameSize(t *testing.T) {
	f := NewLengthPrefixedFramer(64)

	var buf bytes.Buffer
	env := &Envelope{
		Header:  Header{Op: 1},
		Payload: bytes.Repeat([]byte{'x'}, 128),
	}
	require.Error(t, f.WriteFrame(&buf, env))

	// 读取侧也应拒绝超限帧。
	big := NewLengthPrefixedFramer(0)
	require.NoError(t, big.WriteFrame(&buf, env))
	_, err := f.ReadFrame(&buf)
	require.Error(t, err)
}

func TestMultipleFramesOnStream(t *testing.T) {
	f := NewLengthPrefixedFramer(0)

	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		env := &Envelope{
			Header:  Header{Op: uint32(i + 1), Seq: uint64(i + 1)},
			Payload: []byte{byte(i)},
		}
		require.NoError(t, f.WriteFrame(&buf, env))
	}

	for i := 0; i < 3; i++ {
		got, err := f.ReadFrame(&buf)
		require.NoError(t, err)
		require.EqualValues(t, i+1, got.Header.Op)
		require.Equal(t, []byte{byte(i)}, got.Payload)
	}
}
