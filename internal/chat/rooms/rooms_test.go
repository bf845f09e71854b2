package rooms

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
)

func newPacket(id int64, text string) *packet.ChatPacket {
	p := packet.NewPublic("alice", text)
	p.ID = id
	return p
}

func TestCreate(t *testing.T) {
	r := NewRegistry()

	require.True(t, r.Create("general", "alice"))
	assert.False(t, r.Create("general", "bob"))

	assert.Equal(t, []string{"general"}, r.List())
	assert.True(t, r.IsMember("general", "alice"))
	assert.False(t, r.IsMember("general", "bob"))

	// 第二次创建失败后成员不变。
	assert.Equal(t, []string{"alice"}, r.Members("general"))
}

func TestCreateConcurrentSingleWinner(t *testing.T) {
	r := NewRegistry()

	const n = 32
	wins := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- r.Create("general", "alice")
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestJoinUnknownRoom(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Join("ghost", "alice"))
	assert.Empty(t, r.List())
}

func TestJoinReturnsLastTenOldestFirst(t *testing.T) {
	r := NewRegistry()
	r.Create("general", "alice")

	for i := 1; i <= 15; i++ {
		require.True(t, r.Append("general", newPacket(int64(i), "msg")))
	}

	got := r.Join("general", "bob")
	require.Len(t, got, JoinSnapshotSize)
	assert.EqualValues(t, 6, got[0].ID)
	assert.EqualValues(t, 15, got[len(got)-1].ID)
	assert.True(t, r.IsMember("general", "bob"))
}

func TestJoinIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Create("general", "alice")

	r.Join("general", "bob")
	r.Join("general", "bob")
	assert.Equal(t, []string{"alice", "bob"}, r.Members("general"))
}

func TestJoinFewerThanTen(t *testing.T) {
	r := NewRegistry()
	r.Create("general", "alice")
	r.Append("general", newPacket(1, "only"))

	got := r.Join("general", "bob")
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].ID)
}

func TestLoadOlder(t *testing.T) {
	r := NewRegistry()
	r.Create("general", "alice")
	for i := 1; i <= 10; i++ {
		r.Append("general", newPacket(int64(i), "msg"))
	}

	got := r.LoadOlder("general", 8, 3)
	require.Len(t, got, 3)
	assert.EqualValues(t, 5, got[0].ID)
	assert.EqualValues(t, 6, got[1].ID)
	assert.EqualValues(t, 7, got[2].ID)
}

func TestLoadOlderExhaustsLog(t *testing.T) {
	r := NewRegistry()
	r.Create("general", "alice")
	for i := 1; i <= 3; i++ {
		r.Append("general", newPacket(int64(i), "msg"))
	}

	got := r.LoadOlder("general", 3, 10)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0].ID)
	assert.EqualValues(t, 2, got[1].ID)
}

func TestLoadOlderUnknownRoom(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.LoadOlder("ghost", 10, 5))
}

func TestAppendStoresCopy(t *testing.T) {
	r := NewRegistry()
	r.Create("general", "alice")

	p := newPacket(1, "original")
	r.Append("general", p)
	p.Text = "mutated"

	got := r.Join("general", "bob")
	require.Len(t, got, 1)
	assert.Equal(t, "original", got[0].Text)
}

func TestAppendUnknownRoom(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Append("ghost", newPacket(1, "msg")))
}
