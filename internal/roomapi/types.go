package roomapi

import (
	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

// DefaultPageSize 为历史分页接口在未指定 limit 时的默认条数。
const DefaultPageSize = 10

// MaxPageSize 为历史分页接口允许的单次最大条数。
const MaxPageSize = 100

// CreateRoomRequest 创建房间。owner 成为唯一初始成员。
type CreateRoomRequest struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// CreateRoomResponse 的 Created 表示是否新建成功；同名房间已存在时为 false。
type CreateRoomResponse struct {
	Status  *merr.Status `json:"status"`
	Created bool         `json:"created"`
}

// ListRoomsResponse 返回全部房间名。
type ListRoomsResponse struct {
	Status *merr.Status `json:"status"`
	Rooms  []string     `json:"rooms"`
}

// JoinRoomRequest 将用户加入房间（幂等）。
type JoinRoomRequest struct {
	User string `json:"user"`
}

// JoinRoomResponse 返回加入后该房间最近的历史消息（按时间先后排列）。
// 房间不存在时 Messages 为空，不视为错误。
type JoinRoomResponse struct {
	Status   *merr.Status         `json:"status"`
	Messages []*packet.ChatPacket `json:"messages"`
}

// MessagesResponse 为历史分页接口的应答，消息按 id 升序排列。
type MessagesResponse struct {
	Status   *merr.Status         `json:"status"`
	Messages []*packet.ChatPacket `json:"messages"`
}
