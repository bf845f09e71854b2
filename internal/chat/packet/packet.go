package packet

import "strings"

// 协议号定义。
//
// 约定：
//   - 客户端发出：OpLogin / OpChat / OpWho；
//   - 服务器发出：OpInfo / OpChat / OpUserList。
const (
	OpLogin    uint32 = 1
	OpInfo     uint32 = 2
	OpChat     uint32 = 3
	OpWho      uint32 = 4
	OpUserList uint32 = 5
)

// Kind 表示聊天消息的路由类型。
type Kind string

const (
	// KindPublic 为向所有在线用户广播的公共消息。
	KindPublic Kind = "public"
	// KindDM 为发给单个用户的私聊消息。
	KindDM Kind = "dm"
	// KindMcast 为发给一组用户的组播消息。
	KindMcast Kind = "mcast"
	// KindEdit 为对已有消息的原地编辑请求/事件。
	KindEdit Kind = "edit"
)

// ExcerptMax 为回复摘要的最大长度（按字符计）。
const ExcerptMax = 30

// Login 是会话上的第一条消息，声明用户名。
type Login struct {
	UserName string `json:"userName"`
}

// Info 为服务器下发的提示文本。
type Info struct {
	Text string `json:"text"`
}

// WhoRequest 请求当前在线用户列表。
type WhoRequest struct{}

// UserList 为 WhoRequest 的应答。
type UserList struct {
	Users []string `json:"users"`
}

// ChatPacket 是一条聊天消息的完整载体。
//
// 字段约定：
//   - From/ID/Timestamp 由服务器端填写，客户端携带的值会被覆盖；
//   - To 对 DM 为单个用户，对 Mcast 为用户列表，对 Public 为空；
//   - Room 非空时表示房间内发送，由服务器展开为成员组播并写入房间历史；
//   - ReplyToID > 0 时表示回复，ReplyAuthor/ReplyExcerpt 由服务器填写；
//   - Kind 为 edit 时，EditTargetID 指向被编辑的消息。
type ChatPacket struct {
	Kind Kind   `json:"kind"`
	From string `json:"from,omitempty"`
	Text string `json:"text,omitempty"`

	To   []string `json:"to,omitempty"`
	Room string   `json:"room,omitempty"`

	ID        int64 `json:"id,omitempty"`
	Timestamp int64 `json:"timestamp,omitempty"`

	ReplyToID    int64  `json:"replyToId,omitempty"`
	ReplyAuthor  string `json:"replyAuthor,omitempty"`
	ReplyExcerpt string `json:"replyExcerpt,omitempty"`

	EditTargetID int64 `json:"editTargetId,omitempty"`
	Edited       bool  `json:"edited,omitempty"`
}

// NewPublic 构造一条公共消息。
func NewPublic(from, text string) *ChatPacket {
	return &ChatPacket{Kind: KindPublic, From: from, Text: text}
}

// NewDM 构造一条私聊消息。
func NewDM(from, toUser, text string) *ChatPacket {
	return &ChatPacket{Kind: KindDM, From: from, To: []string{toUser}, Text: text}
}

// NewMcast 构造一条组播消息。
func NewMcast(from string, toUsers []string, text string) *ChatPacket {
	return &ChatPacket{Kind: KindMcast, From: from, To: toUsers, Text: text}
}

// NewEdit 构造一条编辑请求。
func NewEdit(from string, targetID int64, newText string) *ChatPacket {
	return &ChatPacket{Kind: KindEdit, From: from, EditTargetID: targetID, Text: newText}
}

// NewReply 构造一条带回复引用的公共消息。
func NewReply(from string, replyToID int64, text string) *ChatPacket {
	return &ChatPacket{Kind: KindPublic, From: from, ReplyToID: replyToID, Text: text}
}

// NewRoom 构造一条房间内消息。
func NewRoom(from, room, text string) *ChatPacket {
	return &ChatPacket{Kind: KindMcast, From: from, Room: room, Text: text}
}

// Clone 返回该消息的深拷贝。
// 存储与投递路径均持有独立副本，避免后续修改互相影响。
func (p *ChatPacket) Clone() *ChatPacket {
	if p == nil {
		return nil
	}
	c := *p
	if p.To != nil {
		c.To = make([]string, len(p.To))
		copy(c.To, p.To)
	}
	return &c
}

// Excerpt 返回用于回复预览的消息摘要。
// 文本先去除首尾空白；超过 max 个字符时截断并追加 "..."。
func Excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
