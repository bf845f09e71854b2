package rooms

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/pkg/util/typeutil"
)

// JoinSnapshotSize 为加入房间时返回的最近消息条数上限。
const JoinSnapshotSize = 10

// room 表示一个房间：成员集合 + 追加式历史日志。
//
// room.mu 保证同一房间上 “加入并读取快照” 与 “追加历史” 互斥：
// 加入者拿到的最近 N 条快照与其成员身份的生效是一致的。
type room struct {
	mu      sync.Mutex
	members typeutil.Set[string]
	log     []*packet.ChatPacket
}

// Registry 维护全部房间及其历史。
//
// 约定：
//   - 房间只增不删，成员只增不减；
//   - 未知房间的查询一律返回空结果，而不是错误；
//   - 所有方法并发安全。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry 创建一个空的房间注册表。
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
	}
}

// Create 创建房间并将 owner 设为唯一初始成员。
// 同名房间已存在时返回 false 且不做任何修改；并发创建同名房间时只有一个成功。
func (r *Registry) Create(name, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[name]; exists {
		return false
	}
	r.rooms[name] = &room{
		members: typeutil.NewSet(owner),
	}
	return true
}

// List 返回当前所有房间名的快照。
func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Join 将用户加入房间（幂等），并返回该房间最近至多 10 条消息（按时间先后排列）。
// 房间不存在时返回空序列，不会隐式创建。
func (r *Registry) Join(name, user string) []*packet.ChatPacket {
	rm := r.get(name)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.members.Insert(user)

	start := len(rm.log) - JoinSnapshotSize
	if start < 0 {
		start = 0
	}
	return clonePackets(rm.log[start:])
}

// LoadOlder 返回该房间历史中 id < beforeID 的至多 limit 条消息。
// 从日志最新端向旧端扫描，凑满 limit 或扫尽为止；结果按 id 升序返回。
// 房间不存在时返回空序列。
func (r *Registry) LoadOlder(name string, beforeID int64, limit int) []*packet.ChatPacket {
	rm := r.get(name)
	if rm == nil || limit <= 0 {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	result := make([]*packet.ChatPacket, 0, limit)
	for i := len(rm.log) - 1; i >= 0; i-- {
		p := rm.log[i]
		if p.ID < beforeID {
			result = append(result, p.Clone())
			if len(result) == limit {
				break
			}
		}
	}

	// 扫描方向为新到旧，反转后按 id 升序返回。
	lo.Reverse(result)
	return result
}

// Append 将一条已定稿的消息追加到房间历史（存储其深拷贝）。
// 房间不存在时返回 false。
func (r *Registry) Append(name string, p *packet.ChatPacket) bool {
	rm := r.get(name)
	if rm == nil || p == nil {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.log = append(rm.log, p.Clone())
	return true
}

// IsMember 判断用户是否为房间成员。房间不存在时返回 false。
func (r *Registry) IsMember(name, user string) bool {
	rm := r.get(name)
	if rm == nil {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.members.Contain(user)
}

// Members 返回房间成员的有序快照。房间不存在时返回空序列。
func (r *Registry) Members(name string) []string {
	rm := r.get(name)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	members := rm.members.Collect()
	rm.mu.Unlock()

	sort.Strings(members)
	return members
}

// Count 返回当前房间数量。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) get(name string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[name]
}

func clonePackets(src []*packet.ChatPacket) []*packet.ChatPacket {
	return lo.Map(src, func(p *packet.ChatPacket, _ int) *packet.ChatPacket {
		return p.Clone()
	})
}
