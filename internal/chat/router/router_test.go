package router

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/chat/directory"
	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/internal/chat/store"
)

type sentMsg struct {
	op  uint32
	msg any
}

type fakePeer struct {
	id uint64

	mu   sync.Mutex
	sent []sentMsg
}

func (p *fakePeer) ID() uint64 { return p.id }

func (p *fakePeer) Send(op uint32, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 投递路径可能复用同一指针，这里拷贝一份便于断言。
	if cp, ok := msg.(*packet.ChatPacket); ok {
		msg = cp.Clone()
	}
	p.sent = append(p.sent, sentMsg{op: op, msg: msg})
	return nil
}

func (p *fakePeer) Close() error { return nil }

func (p *fakePeer) chats() []*packet.ChatPacket {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []*packet.ChatPacket
	for _, m := range p.sent {
		if m.op == packet.OpChat {
			result = append(result, m.msg.(*packet.ChatPacket))
		}
	}
	return result
}

func (p *fakePeer) infos() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []string
	for _, m := range p.sent {
		if m.op == packet.OpInfo {
			result = append(result, m.msg.(*packet.Info).Text)
		}
	}
	return result
}

type testEnv struct {
	router *Router
	store  *store.Store
	peers  map[string]*fakePeer
}

func newTestEnv(users ...string) *testEnv {
	dir := directory.New()
	st := store.New()

	peers := make(map[string]*fakePeer, len(users))
	for i, user := range users {
		p := &fakePeer{id: uint64(i + 1)}
		dir.Bind(user, p)
		peers[user] = p
	}
	return &testEnv{
		router: New(dir, st),
		store:  st,
		peers:  peers,
	}
}

func TestPublicBroadcast(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol")

	finalized := env.router.Route("alice", packet.NewPublic("alice", "hello"))
	require.NotNil(t, finalized)
	assert.EqualValues(t, 1, finalized.ID)

	for _, user := range []string{"alice", "bob", "carol"} {
		chats := env.peers[user].chats()
		require.Len(t, chats, 1, "user %s", user)
		assert.Equal(t, "alice", chats[0].From)
		assert.Equal(t, "hello", chats[0].Text)
		assert.EqualValues(t, 1, chats[0].ID)
		assert.False(t, chats[0].Edited)
		assert.NotZero(t, chats[0].Timestamp)
	}
}

func TestFromOverwritten(t *testing.T) {
	env := newTestEnv("alice", "bob")

	p := packet.NewPublic("mallory", "spoofed")
	env.router.Route("alice", p)

	chats := env.peers["bob"].chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "alice", chats[0].From)
}

func TestDMDeliveryAndEcho(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol")

	env.router.Route("alice", packet.NewDM("alice", "bob", "psst"))

	require.Len(t, env.peers["bob"].chats(), 1)
	require.Len(t, env.peers["alice"].chats(), 1)
	assert.Empty(t, env.peers["carol"].chats())
}

func TestDMOfflineTargetStillEchoes(t *testing.T) {
	env := newTestEnv("alice")

	env.router.Route("alice", packet.NewDM("alice", "ghost", "anyone there"))

	chats := env.peers["alice"].chats()
	require.Len(t, chats, 1)
	assert.Equal(t, []string{"ghost"}, chats[0].To)
}

func TestMcastDeliveryAndEcho(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol", "dave")

	env.router.Route("alice", packet.NewMcast("alice", []string{"bob", "carol"}, "team"))

	require.Len(t, env.peers["bob"].chats(), 1)
	require.Len(t, env.peers["carol"].chats(), 1)
	require.Len(t, env.peers["alice"].chats(), 1)
	assert.Empty(t, env.peers["dave"].chats())
}

func TestMcastSenderInTargetsNoDoubleEcho(t *testing.T) {
	env := newTestEnv("alice", "bob")

	env.router.Route("alice", packet.NewMcast("alice", []string{"alice", "bob"}, "team"))

	assert.Len(t, env.peers["alice"].chats(), 1)
	assert.Len(t, env.peers["bob"].chats(), 1)
}

func TestReplyResolution(t *testing.T) {
	env := newTestEnv("alice", "bob")

	long := strings.Repeat("x", packet.ExcerptMax+5)
	env.router.Route("bob", packet.NewPublic("bob", long))

	env.router.Route("alice", packet.NewReply("alice", 1, "agreed"))

	chats := env.peers["bob"].chats()
	require.Len(t, chats, 2)
	reply := chats[1]
	assert.Equal(t, "bob", reply.ReplyAuthor)
	assert.Equal(t, strings.Repeat("x", packet.ExcerptMax)+"...", reply.ReplyExcerpt)
	assert.EqualValues(t, 1, reply.ReplyToID)
}

func TestReplyToMissingMessage(t *testing.T) {
	env := newTestEnv("alice")

	env.router.Route("alice", packet.NewReply("alice", 999, "into the void"))

	chats := env.peers["alice"].chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "?", chats[0].ReplyAuthor)
	assert.Equal(t, "Original message not found", chats[0].ReplyExcerpt)
}

func TestEditSuccess(t *testing.T) {
	env := newTestEnv("alice", "bob")

	env.router.Route("alice", packet.NewPublic("alice", "draft"))
	env.router.Route("alice", packet.NewEdit("alice", 1, "final"))

	chats := env.peers["bob"].chats()
	require.Len(t, chats, 2)

	event := chats[1]
	assert.Equal(t, packet.KindEdit, event.Kind)
	assert.EqualValues(t, 1, event.ID)
	assert.EqualValues(t, 1, event.EditTargetID)
	assert.Equal(t, "final", event.Text)
	assert.True(t, event.Edited)

	// 编辑不产生新消息，下一条消息拿到 ID 2。
	next := env.router.Route("alice", packet.NewPublic("alice", "after"))
	assert.EqualValues(t, 2, next.ID)
	assert.Equal(t, 2, env.store.Len())
}

func TestEditDMFansOutToOriginalScope(t *testing.T) {
	env := newTestEnv("alice", "bob", "carol")

	env.router.Route("alice", packet.NewDM("alice", "bob", "draft"))
	env.router.Route("alice", packet.NewEdit("alice", 1, "final"))

	require.Len(t, env.peers["bob"].chats(), 2)
	require.Len(t, env.peers["alice"].chats(), 2)
	assert.Empty(t, env.peers["carol"].chats())
	assert.Equal(t, packet.KindEdit, env.peers["bob"].chats()[1].Kind)
}

func TestEditTargetNotFound(t *testing.T) {
	env := newTestEnv("alice")

	result := env.router.Route("alice", packet.NewEdit("alice", 42, "whatever"))
	assert.Nil(t, result)

	infos := env.peers["alice"].infos()
	require.Len(t, infos, 1)
	assert.Equal(t, "Server: Message ID 42 not found.", infos[0])
}

func TestEditNotOwner(t *testing.T) {
	env := newTestEnv("alice", "bob")

	env.router.Route("alice", packet.NewPublic("alice", "mine"))
	env.router.Route("bob", packet.NewEdit("bob", 1, "hijacked"))

	infos := env.peers["bob"].infos()
	require.Len(t, infos, 1)
	assert.Equal(t, "Server: You can edit only your own messages.", infos[0])

	stored, ok := env.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "mine", stored.Text)
}

func TestRouteRejectsEmptySender(t *testing.T) {
	env := newTestEnv("alice")
	assert.Nil(t, env.router.Route("", packet.NewPublic("", "nope")))
}
