package hub

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/chat-garden-go/internal/chat/directory"
	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/internal/chat/rooms"
	chatrouter "github.com/lk2023060901/chat-garden-go/internal/chat/router"
	"github.com/lk2023060901/chat-garden-go/internal/chat/store"
	"github.com/lk2023060901/chat-garden-go/internal/network/acceptor"
	"github.com/lk2023060901/chat-garden-go/internal/network/codec"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	netrouter "github.com/lk2023060901/chat-garden-go/internal/network/router"
	"github.com/lk2023060901/chat-garden-go/internal/network/serializer"
	"github.com/lk2023060901/chat-garden-go/internal/network/session"
	"github.com/lk2023060901/chat-garden-go/pkg/log"
	"github.com/lk2023060901/chat-garden-go/pkg/metrics"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

// Hub 是聊天服务器的业务接入层：实现 acceptor.Handler，
// 将登录、聊天、在线列表等协议消息分发到对应的处理逻辑。
//
// 会话生命周期：
//   - 连接建立后第一条消息应为 Login，否则后续聊天消息会被静默丢弃；
//   - 同一用户名重复登录时，新会话取代旧会话，旧会话被服务器关闭；
//   - 会话断开时解除用户名绑定，并向其余在线用户广播下线通知。
type Hub struct {
	dir   *directory.Directory
	store *store.Store
	rooms *rooms.Registry
	chat  *chatrouter.Router

	ops   netrouter.Router
	idGen *atomic.Uint64
}

// 编译期断言：确保 Hub 实现了 acceptor.Handler。
var _ acceptor.Handler = (*Hub)(nil)

// New 创建聊天业务处理器。
func New(dir *directory.Directory, st *store.Store, reg *rooms.Registry) (*Hub, error) {
	h := &Hub{
		dir:   dir,
		store: st,
		rooms: reg,
		chat:  chatrouter.New(dir, st),
		ops:   netrouter.New(serializer.JSONSerializer{}),
		idGen: atomic.NewUint64(0),
	}

	routes := map[uint32]netrouter.Route{
		packet.OpLogin: {
			NewRequest: func() any { return &packet.Login{} },
			Handler:    h.handleLogin,
		},
		packet.OpChat: {
			NewRequest: func() any { return &packet.ChatPacket{} },
			Handler:    h.handleChat,
		},
		packet.OpWho: {
			NewRequest: func() any { return &packet.WhoRequest{} },
			Handler:    h.handleWho,
			RespOp:     packet.OpUserList,
		},
	}
	for op, route := range routes {
		if err := h.ops.Register(op, route); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// OnAccept 实现 acceptor.Handler.OnAccept。
func (h *Hub) OnAccept(ctx context.Context, conn net.Conn, c codec.Codec) (session.Session, error) {
	sess := session.NewBaseSession(ctx, h.idGen.Add(1), conn, c)
	log.Info("session accepted",
		zap.Uint64("session", sess.ID()),
		zap.Stringer("remote", sess.RemoteAddr()))
	return sess, nil
}

// OnMessage 实现 acceptor.Handler.OnMessage。
func (h *Hub) OnMessage(sess session.Session, header *framer.Header, payload []byte) {
	if err := h.ops.Handle(sess, header, payload); err != nil {
		log.RatedWarn(1, "message handling failed",
			zap.Uint64("session", sess.ID()),
			zap.Uint32("op", header.Op),
			zap.Error(err))
	}
}

// OnSessionClosed 实现 acceptor.Handler.OnSessionClosed。
func (h *Hub) OnSessionClosed(sess session.Session, err error) {
	user, ok := h.dir.Unbind(sess.ID())
	metrics.OnlineSessions.Set(float64(h.dir.Count()))

	log.Info("session closed",
		zap.Uint64("session", sess.ID()),
		zap.String("user", user),
		zap.Error(err))

	if ok {
		h.broadcastInfo(fmt.Sprintf("%s has disconnected!", user), sess.ID())
	}
}

// OnError 实现 acceptor.Handler.OnError。
func (h *Hub) OnError(sess session.Session, err error) {
	var id uint64
	if sess != nil {
		id = sess.ID()
	}
	log.Warn("session error", zap.Uint64("session", id), zap.Error(err))
}

// OnTimeout 实现 acceptor.Handler.OnTimeout。读超时不致命，继续等待。
func (h *Hub) OnTimeout(session.Session) error {
	return nil
}

// handleLogin 处理登录：绑定用户名，向本人问好，向其他人广播上线通知。
func (h *Hub) handleLogin(sess session.Session, req any) (any, error) {
	login := req.(*packet.Login)
	user := login.UserName
	if user == "" {
		_ = sess.Send(packet.OpInfo, &packet.Info{Text: "Server: user name must not be empty."})
		return nil, nil
	}

	displaced := h.dir.Bind(user, sess)
	if displaced != nil {
		log.Info("user relogged, closing previous session",
			zap.String("user", user),
			zap.Uint64("oldSession", displaced.ID()),
			zap.Uint64("newSession", sess.ID()))
		_ = displaced.Send(packet.OpInfo, &packet.Info{Text: "Server: logged in from another session."})
		_ = displaced.Close()
	}
	metrics.OnlineSessions.Set(float64(h.dir.Count()))

	_ = sess.Send(packet.OpInfo, &packet.Info{Text: "Hello " + user})
	h.broadcastInfo(fmt.Sprintf("User %s has connected!", user), sess.ID())

	log.Info("user logged in",
		zap.String("user", user),
		zap.Uint64("session", sess.ID()))
	return nil, nil
}

// handleChat 处理聊天消息。未登录会话的消息被静默丢弃。
func (h *Hub) handleChat(sess session.Session, req any) (any, error) {
	p := req.(*packet.ChatPacket)

	sender, ok := h.dir.UserOf(sess.ID())
	if !ok {
		log.RatedInfo(10, "chat message dropped",
			zap.Error(merr.WrapErrSessionNotLoggedIn(sess.ID())))
		metrics.DeliveriesDropped.WithLabelValues("not_logged_in").Inc()
		return nil, nil
	}

	// 房间内发送：校验成员资格后展开为成员组播，定稿消息写入房间历史。
	if p.Room != "" && p.Kind != packet.KindEdit {
		h.routeRoomMessage(sess, sender, p)
		return nil, nil
	}

	h.chat.Route(sender, p)
	return nil, nil
}

// routeRoomMessage 将房间消息展开为成员组播并写入房间历史。
func (h *Hub) routeRoomMessage(sess session.Session, sender string, p *packet.ChatPacket) {
	if !h.rooms.IsMember(p.Room, sender) {
		log.Info("room message rejected",
			zap.Uint64("session", sess.ID()),
			zap.Error(merr.WrapErrRoomNotMember(p.Room, sender)))
		_ = sess.Send(packet.OpInfo, &packet.Info{
			Text: fmt.Sprintf("Server: You are not a member of room '%s'.", p.Room),
		})
		return
	}

	p.Kind = packet.KindMcast
	p.To = h.rooms.Members(p.Room)

	finalized := h.chat.Route(sender, p)
	if finalized != nil {
		h.rooms.Append(p.Room, finalized)
	}
}

// handleWho 返回当前在线用户列表。
func (h *Hub) handleWho(session.Session, any) (any, error) {
	return &packet.UserList{Users: h.dir.Users()}, nil
}

// broadcastInfo 向除 exceptID 外的所有在线会话发送提示文本。
func (h *Hub) broadcastInfo(text string, exceptID uint64) {
	h.dir.Range(func(_ string, peer directory.Peer) bool {
		if peer.ID() != exceptID {
			_ = peer.Send(packet.OpInfo, &packet.Info{Text: text})
		}
		return true
	})
}
