package session

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/network/codec"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/internal/network/serializer"
)

type testMsg struct {
	Text string `json:"text"`
}

func newTestCodec(t *testing.T) codec.Codec {
	c, err := codec.New(codec.Options{
		Framer:     framer.NewLengthPrefixedFramer(0),
		Serializer: serializer.JSONSerializer{},
	})
	require.NoError(t, err)
	return c
}

func TestSendDeliversFrame(t *testing.T) {
	c := newTestCodec(t)

	client, server := net.Pipe()
	defer server.Close()

	sess := NewBaseSession(context.Background(), 1, client, c)
	defer sess.Close()

	require.NoError(t, sess.Send(3, &testMsg{Text: "ping"}))

	header, payload, err := c.DecodeRaw(server)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), header.Op)
	assert.NotEmpty(t, payload)
}

func TestSendAfterCloseRejected(t *testing.T) {
	c := newTestCodec(t)

	client, server := net.Pipe()
	defer server.Close()

	sess := NewBaseSession(context.Background(), 1, client, c)
	require.NoError(t, sess.Close())

	err := sess.Send(3, &testMsg{Text: "late"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseIdempotent(t *testing.T) {
	c := newTestCodec(t)

	client, server := net.Pipe()
	defer server.Close()

	sess := NewBaseSession(context.Background(), 1, client, c)
	require.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
}

// 并发 Send 与 Close 交错时不允许出现 panic 或数据竞争，
// 恰好对应重复登录时旧会话被服务器关闭、而路由仍在向其扇出的场景。
func TestCloseConcurrentWithSend(t *testing.T) {
	c := newTestCodec(t)

	for i := 0; i < 200; i++ {
		client, server := net.Pipe()
		go func() { _, _ = io.Copy(io.Discard, server) }()

		sess := NewBaseSession(context.Background(), uint64(i+1), client, c)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 8; j++ {
					if err := sess.Send(3, &testMsg{Text: "race"}); err != nil {
						assert.ErrorIs(t, err, context.Canceled)
						return
					}
				}
			}()
		}

		_ = sess.Close()
		wg.Wait()
		_ = server.Close()
	}
}
