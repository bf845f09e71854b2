package hub

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/chat/directory"
	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/internal/chat/rooms"
	"github.com/lk2023060901/chat-garden-go/internal/chat/store"
	"github.com/lk2023060901/chat-garden-go/internal/json"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
)

type sentMsg struct {
	op  uint32
	msg any
}

type fakeSession struct {
	id uint64

	mu     sync.Mutex
	sent   []sentMsg
	closed bool
}

func (s *fakeSession) ID() uint64               { return s.id }
func (s *fakeSession) Context() context.Context { return context.Background() }
func (s *fakeSession) RemoteAddr() net.Addr     { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (s *fakeSession) LocalAddr() net.Addr      { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (s *fakeSession) OnConnected()             {}
func (s *fakeSession) OnDisconnected(error)     {}

func (s *fakeSession) Send(op uint32, msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cp, ok := msg.(*packet.ChatPacket); ok {
		msg = cp.Clone()
	}
	s.sent = append(s.sent, sentMsg{op: op, msg: msg})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) infos() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []string
	for _, m := range s.sent {
		if m.op == packet.OpInfo {
			result = append(result, m.msg.(*packet.Info).Text)
		}
	}
	return result
}

func (s *fakeSession) chats() []*packet.ChatPacket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*packet.ChatPacket
	for _, m := range s.sent {
		if m.op == packet.OpChat {
			result = append(result, m.msg.(*packet.ChatPacket))
		}
	}
	return result
}

func (s *fakeSession) userLists() []*packet.UserList {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*packet.UserList
	for _, m := range s.sent {
		if m.op == packet.OpUserList {
			result = append(result, m.msg.(*packet.UserList))
		}
	}
	return result
}

type hubEnv struct {
	t      *testing.T
	hub    *Hub
	rooms  *rooms.Registry
	nextID uint64
}

func newHubEnv(t *testing.T) *hubEnv {
	reg := rooms.NewRegistry()
	h, err := New(directory.New(), store.New(), reg)
	require.NoError(t, err)
	return &hubEnv{t: t, hub: h, rooms: reg}
}

func (e *hubEnv) newSession() *fakeSession {
	e.nextID++
	return &fakeSession{id: e.nextID}
}

// dispatch 模拟一条完整入站消息：序列化请求并走协议号分发。
func (e *hubEnv) dispatch(sess *fakeSession, op uint32, req any) {
	payload, err := json.Marshal(req)
	require.NoError(e.t, err)
	e.hub.OnMessage(sess, &framer.Header{Op: op, Size: uint32(len(payload))}, payload)
}

func (e *hubEnv) login(sess *fakeSession, user string) {
	e.dispatch(sess, packet.OpLogin, &packet.Login{UserName: user})
}

func TestLoginGreetsAndAnnounces(t *testing.T) {
	env := newHubEnv(t)

	bob := env.newSession()
	env.login(bob, "bob")

	alice := env.newSession()
	env.login(alice, "alice")

	assert.Contains(t, alice.infos(), "Hello alice")
	assert.Contains(t, bob.infos(), "User alice has connected!")
	assert.NotContains(t, alice.infos(), "User alice has connected!")
}

func TestLoginEmptyUserRejected(t *testing.T) {
	env := newHubEnv(t)

	sess := env.newSession()
	env.login(sess, "")

	assert.Contains(t, sess.infos(), "Server: user name must not be empty.")

	env.dispatch(sess, packet.OpWho, &packet.WhoRequest{})
	lists := sess.userLists()
	require.Len(t, lists, 1)
	assert.Empty(t, lists[0].Users)
}

func TestLoginDisplacesPreviousSession(t *testing.T) {
	env := newHubEnv(t)

	s1 := env.newSession()
	env.login(s1, "alice")

	s2 := env.newSession()
	env.login(s2, "alice")

	assert.True(t, s1.isClosed())
	assert.Contains(t, s1.infos(), "Server: logged in from another session.")
	assert.False(t, s2.isClosed())

	// 新会话接管后消息只到达新会话。
	env.dispatch(s2, packet.OpChat, packet.NewPublic("alice", "still here"))
	assert.Len(t, s2.chats(), 1)
	assert.Empty(t, s1.chats())
}

func TestChatRequiresLogin(t *testing.T) {
	env := newHubEnv(t)

	alice := env.newSession()
	env.login(alice, "alice")

	anon := env.newSession()
	env.dispatch(anon, packet.OpChat, packet.NewPublic("ghost", "boo"))

	assert.Empty(t, alice.chats())
	assert.Empty(t, anon.chats())
}

func TestChatPublicThroughHub(t *testing.T) {
	env := newHubEnv(t)

	alice := env.newSession()
	bob := env.newSession()
	env.login(alice, "alice")
	env.login(bob, "bob")

	env.dispatch(alice, packet.OpChat, packet.NewPublic("alice", "hello all"))

	for _, sess := range []*fakeSession{alice, bob} {
		chats := sess.chats()
		require.Len(t, chats, 1)
		assert.Equal(t, "alice", chats[0].From)
		assert.Equal(t, "hello all", chats[0].Text)
	}
}

func TestWhoListsUsersSorted(t *testing.T) {
	env := newHubEnv(t)

	for _, user := range []string{"carol", "alice", "bob"} {
		sess := env.newSession()
		env.login(sess, user)
	}

	sess := env.newSession()
	env.login(sess, "dave")
	env.dispatch(sess, packet.OpWho, &packet.WhoRequest{})

	lists := sess.userLists()
	require.Len(t, lists, 1)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, lists[0].Users)
}

func TestRoomMessageExpandsToMembers(t *testing.T) {
	env := newHubEnv(t)

	alice := env.newSession()
	bob := env.newSession()
	carol := env.newSession()
	env.login(alice, "alice")
	env.login(bob, "bob")
	env.login(carol, "carol")

	require.True(t, env.rooms.Create("general", "alice"))
	env.rooms.Join("general", "bob")

	env.dispatch(alice, packet.OpChat, packet.NewRoom("alice", "general", "room hello"))

	require.Len(t, alice.chats(), 1)
	require.Len(t, bob.chats(), 1)
	assert.Empty(t, carol.chats())

	// 定稿消息写入了房间历史。
	history := env.rooms.Join("general", "carol")
	require.Len(t, history, 1)
	assert.Equal(t, "room hello", history[0].Text)
	assert.Equal(t, "alice", history[0].From)
	assert.NotZero(t, history[0].ID)
}

func TestRoomMessageRejectsNonMember(t *testing.T) {
	env := newHubEnv(t)

	alice := env.newSession()
	bob := env.newSession()
	env.login(alice, "alice")
	env.login(bob, "bob")

	require.True(t, env.rooms.Create("general", "alice"))

	env.dispatch(bob, packet.OpChat, packet.NewRoom("bob", "general", "let me in"))

	assert.Contains(t, bob.infos(), "Server: You are not a member of room 'general'.")
	assert.Empty(t, alice.chats())
	assert.Empty(t, env.rooms.Join("general", "alice"))
}

func TestDisconnectBroadcast(t *testing.T) {
	env := newHubEnv(t)

	alice := env.newSession()
	bob := env.newSession()
	env.login(alice, "alice")
	env.login(bob, "bob")

	env.hub.OnSessionClosed(alice, nil)

	assert.Contains(t, bob.infos(), "alice has disconnected!")

	// 下线后公共消息不再投递给旧会话。
	aliceChatsBefore := len(alice.chats())
	env.dispatch(bob, packet.OpChat, packet.NewPublic("bob", "bye"))
	assert.Len(t, alice.chats(), aliceChatsBefore)
}
