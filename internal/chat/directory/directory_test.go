package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id     uint64
	closed bool
	sent   []any
}

func (f *fakePeer) ID() uint64 { return f.id }

func (f *fakePeer) Send(op uint32, msg any) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakePeer) Close() error {
	f.closed = true
	return nil
}

func TestBindLookup(t *testing.T) {
	d := New()
	p := &fakePeer{id: 1}

	require.Nil(t, d.Bind("alice", p))

	got, ok := d.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, p, got)

	user, ok := d.UserOf(1)
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, 1, d.Count())
}

func TestRebindLastWins(t *testing.T) {
	d := New()
	old := &fakePeer{id: 1}
	neu := &fakePeer{id: 2}

	require.Nil(t, d.Bind("alice", old))
	displaced := d.Bind("alice", neu)
	require.Equal(t, old, displaced)

	got, ok := d.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, neu, got)

	// 旧会话的反向映射应被清除。
	_, ok = d.UserOf(1)
	assert.False(t, ok)
}

func TestBindSamePeerIdempotent(t *testing.T) {
	d := New()
	p := &fakePeer{id: 1}

	require.Nil(t, d.Bind("alice", p))
	require.Nil(t, d.Bind("alice", p))
	assert.Equal(t, 1, d.Count())
}

func TestUnbind(t *testing.T) {
	d := New()
	p := &fakePeer{id: 1}
	d.Bind("alice", p)

	user, ok := d.Unbind(1)
	require.True(t, ok)
	assert.Equal(t, "alice", user)

	_, ok = d.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, d.Count())

	_, ok = d.Unbind(1)
	assert.False(t, ok)
}

func TestUnbindDisplacedDoesNotRemoveNewBinding(t *testing.T) {
	d := New()
	old := &fakePeer{id: 1}
	neu := &fakePeer{id: 2}

	d.Bind("alice", old)
	d.Bind("alice", neu)

	// 被取代的旧会话断开时，不应影响新会话的绑定。
	_, ok := d.Unbind(1)
	assert.False(t, ok)

	got, ok := d.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, neu, got)
}

func TestUsersSorted(t *testing.T) {
	d := New()
	d.Bind("carol", &fakePeer{id: 3})
	d.Bind("alice", &fakePeer{id: 1})
	d.Bind("bob", &fakePeer{id: 2})

	assert.Equal(t, []string{"alice", "bob", "carol"}, d.Users())
}

func TestRange(t *testing.T) {
	d := New()
	d.Bind("alice", &fakePeer{id: 1})
	d.Bind("bob", &fakePeer{id: 2})

	seen := map[string]bool{}
	d.Range(func(user string, p Peer) bool {
		seen[user] = true
		return true
	})
	assert.Len(t, seen, 2)

	// 回调返回 false 时应中断遍历。
	count := 0
	d.Range(func(string, Peer) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
