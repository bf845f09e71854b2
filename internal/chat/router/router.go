package router

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/chat-garden-go/internal/chat/directory"
	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/internal/chat/store"
	"github.com/lk2023060901/chat-garden-go/pkg/log"
	"github.com/lk2023060901/chat-garden-go/pkg/metrics"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

// Router 负责聊天消息的定稿与投递。
//
// 定稿：覆盖 from、分配 ID 与时间戳、解析回复引用、写入存储；
// 投递：按消息类型（public/dm/mcast）扇出到在线会话。
// 编辑请求不产生新消息，原地更新后按原消息的类型扇出编辑事件。
type Router struct {
	dir   *directory.Directory
	store *store.Store
}

// New 创建消息路由器。
func New(dir *directory.Directory, st *store.Store) *Router {
	return &Router{
		dir:   dir,
		store: st,
	}
}

// Route 处理来自已登录用户 sender 的一条聊天消息。
//
// 对新消息，返回定稿后的消息（调用方可据此写入房间历史等）；
// 对编辑请求与无效输入返回 nil，相关提示已直接发给 sender。
func (r *Router) Route(sender string, p *packet.ChatPacket) *packet.ChatPacket {
	if p == nil || sender == "" {
		return nil
	}

	// from 永远以服务器视角为准，客户端携带的值直接覆盖。
	p.From = sender

	metrics.MessagesRouted.WithLabelValues(string(p.Kind)).Inc()
	metrics.MessagePayloadBytes.Observe(float64(len(p.Text)))

	if p.Kind == packet.KindEdit {
		r.handleEdit(sender, p)
		return nil
	}

	// 新消息由服务器分配 ID 与时间戳。
	p.ID = r.store.NextID()
	p.Timestamp = time.Now().UnixMilli()
	p.Edited = false

	if p.ReplyToID > 0 {
		r.resolveReply(p)
	}

	r.store.Put(p)
	r.deliver(p)
	return p
}

// handleEdit 执行原地编辑并将编辑事件按原消息类型扇出。
func (r *Router) handleEdit(sender string, req *packet.ChatPacket) {
	updated, err := r.store.Edit(req.EditTargetID, sender, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, merr.ErrMessageNotFound):
			r.notify(sender, fmt.Sprintf("Server: Message ID %d not found.", req.EditTargetID))
		case errors.Is(err, merr.ErrMessageNotOwned):
			r.notify(sender, "Server: You can edit only your own messages.")
		default:
			log.Warn("edit rejected",
				zap.String("sender", sender),
				zap.Int64("target", req.EditTargetID),
				zap.Error(err))
		}
		return
	}

	metrics.MessagesEdited.Inc()

	// 编辑事件携带更新后的全量内容，kind 置为 edit，
	// 扇出范围沿用原消息的投递范围。
	event := updated.Clone()
	originalKind := event.Kind
	event.Kind = packet.KindEdit
	event.EditTargetID = req.EditTargetID

	switch originalKind {
	case packet.KindPublic:
		r.broadcast(event)
	case packet.KindDM:
		r.sendDM(event)
	case packet.KindMcast:
		r.sendMcast(event)
	}
}

// resolveReply 填写回复预览。原消息不存在时填入占位值而不是报错。
func (r *Router) resolveReply(p *packet.ChatPacket) {
	original, ok := r.store.Get(p.ReplyToID)
	if !ok {
		p.ReplyAuthor = "?"
		p.ReplyExcerpt = "Original message not found"
		metrics.RepliesResolved.WithLabelValues("missing").Inc()
		return
	}
	p.ReplyAuthor = original.From
	p.ReplyExcerpt = packet.Excerpt(original.Text, packet.ExcerptMax)
	metrics.RepliesResolved.WithLabelValues("found").Inc()
}

func (r *Router) deliver(p *packet.ChatPacket) {
	switch p.Kind {
	case packet.KindPublic:
		r.broadcast(p)
	case packet.KindDM:
		r.sendDM(p)
	case packet.KindMcast:
		r.sendMcast(p)
	default:
		log.Warn("unknown message kind dropped",
			zap.String("kind", string(p.Kind)),
			zap.String("from", p.From))
		metrics.DeliveriesDropped.WithLabelValues("unknown_kind").Inc()
	}
}

// broadcast 投递给所有在线用户（含发送者本人）。
func (r *Router) broadcast(p *packet.ChatPacket) {
	r.dir.Range(func(user string, peer directory.Peer) bool {
		r.send(user, peer, p)
		return true
	})
}

// sendDM 投递给目标用户，并回显给发送者。
func (r *Router) sendDM(p *packet.ChatPacket) {
	if len(p.To) < 1 {
		return
	}
	r.sendToUser(p.To[0], p)
	if p.To[0] != p.From {
		r.sendToUser(p.From, p)
	}
}

// sendMcast 投递给全部目标用户，并回显给发送者。
func (r *Router) sendMcast(p *packet.ChatPacket) {
	if len(p.To) == 0 {
		return
	}
	echoed := false
	for _, user := range p.To {
		r.sendToUser(user, p)
		if user == p.From {
			echoed = true
		}
	}
	if !echoed {
		r.sendToUser(p.From, p)
	}
}

func (r *Router) sendToUser(user string, p *packet.ChatPacket) {
	peer, ok := r.dir.Lookup(user)
	if !ok {
		log.RatedInfo(10, "deliver skipped",
			zap.Int64("id", p.ID),
			zap.Error(merr.WrapErrUserOffline(user)))
		metrics.DeliveriesDropped.WithLabelValues("offline").Inc()
		return
	}
	r.send(user, peer, p)
}

func (r *Router) send(user string, peer directory.Peer, p *packet.ChatPacket) {
	if err := peer.Send(packet.OpChat, p); err != nil {
		log.RatedWarn(1, "deliver failed",
			zap.String("user", user),
			zap.Uint64("session", peer.ID()),
			zap.Error(err))
		metrics.DeliveriesDropped.WithLabelValues("send_failed").Inc()
		return
	}
	metrics.MessagesDelivered.Inc()
}

// notify 给单个用户下发一条服务器提示。
func (r *Router) notify(user, text string) {
	peer, ok := r.dir.Lookup(user)
	if !ok {
		return
	}
	_ = peer.Send(packet.OpInfo, &packet.Info{Text: text})
}
