package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

func TestNextIDStartsAtOne(t *testing.T) {
	s := New()
	assert.EqualValues(t, 1, s.NextID())
	assert.EqualValues(t, 2, s.NextID())
	assert.EqualValues(t, 3, s.NextID())
}

func TestNextIDConcurrentUnique(t *testing.T) {
	s := New()

	const n = 100
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- s.NextID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestPutGetDefensiveCopy(t *testing.T) {
	s := New()

	p := packet.NewPublic("alice", "hello")
	p.ID = s.NextID()
	s.Put(p)

	// 写入后修改原对象不影响存储。
	p.Text = "mutated"

	got, ok := s.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)

	// 读取结果被修改也不影响存储。
	got.Text = "mutated again"
	again, _ := s.Get(p.ID)
	assert.Equal(t, "hello", again.Text)
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, ok := s.Get(42)
	assert.False(t, ok)
}

func TestEdit(t *testing.T) {
	s := New()

	p := packet.NewPublic("alice", "original")
	p.ID = s.NextID()
	s.Put(p)

	updated, err := s.Edit(p.ID, "alice", "edited text")
	require.NoError(t, err)
	assert.Equal(t, "edited text", updated.Text)
	assert.True(t, updated.Edited)
	assert.Equal(t, p.ID, updated.ID)

	stored, _ := s.Get(p.ID)
	assert.Equal(t, "edited text", stored.Text)
	assert.True(t, stored.Edited)

	// 存储中的消息总数不变，没有新 ID。
	assert.Equal(t, 1, s.Len())
}

func TestEditNotFound(t *testing.T) {
	s := New()
	_, err := s.Edit(99, "alice", "text")
	assert.ErrorIs(t, err, merr.ErrMessageNotFound)
}

func TestEditNotOwned(t *testing.T) {
	s := New()

	p := packet.NewPublic("alice", "original")
	p.ID = s.NextID()
	s.Put(p)

	_, err := s.Edit(p.ID, "bob", "hijacked")
	assert.ErrorIs(t, err, merr.ErrMessageNotOwned)

	stored, _ := s.Get(p.ID)
	assert.Equal(t, "original", stored.Text)
	assert.False(t, stored.Edited)
}
