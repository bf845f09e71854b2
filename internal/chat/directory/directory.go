package directory

import (
	"sort"
	"sync"
)

// Peer 是目录所需的最小会话能力。
//
// 由 internal/network/session.Session 天然满足；测试中可用轻量伪实现替代。
type Peer interface {
	ID() uint64
	Send(op uint32, msg any) error
	Close() error
}

// Directory 维护 “用户名 <-> 在线会话” 的双向映射。
//
// 约定：
//   - 同一用户名同时最多绑定一条会话，重复登录时新会话取代旧会话（last wins）；
//   - 同一会话同时最多绑定一个用户名；
//   - 所有方法并发安全。
type Directory struct {
	mu       sync.RWMutex
	byUser   map[string]Peer
	byPeerID map[uint64]string
}

// New 创建一个空目录。
func New() *Directory {
	return &Directory{
		byUser:   make(map[string]Peer),
		byPeerID: make(map[uint64]string),
	}
}

// Bind 将用户名绑定到会话。
//
// 返回被取代的旧会话（若该用户此前已在其他会话登录），由调用方负责关闭；
// 无取代时返回 nil。
func (d *Directory) Bind(user string, p Peer) Peer {
	d.mu.Lock()
	defer d.mu.Unlock()

	displaced := d.byUser[user]
	if displaced != nil && displaced.ID() == p.ID() {
		// 同一会话重复登录视为幂等。
		return nil
	}
	if displaced != nil {
		delete(d.byPeerID, displaced.ID())
	}

	// 若该会话此前绑定过其他用户名，先清除旧绑定。
	if oldUser, ok := d.byPeerID[p.ID()]; ok {
		delete(d.byUser, oldUser)
	}

	d.byUser[user] = p
	d.byPeerID[p.ID()] = user
	return displaced
}

// Unbind 解除会话的用户名绑定。
// 返回此前绑定的用户名；该会话未登录时 ok 为 false。
func (d *Directory) Unbind(peerID uint64) (user string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok = d.byPeerID[peerID]
	if !ok {
		return "", false
	}
	delete(d.byPeerID, peerID)

	// 仅当该用户名仍指向这条会话时才删除，避免误删新会话的绑定。
	if cur, exists := d.byUser[user]; exists && cur.ID() == peerID {
		delete(d.byUser, user)
	}
	return user, true
}

// Lookup 根据用户名查找在线会话。
func (d *Directory) Lookup(user string) (Peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.byUser[user]
	return p, ok
}

// UserOf 根据会话 ID 反查用户名。
func (d *Directory) UserOf(peerID uint64) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.byPeerID[peerID]
	return user, ok
}

// Users 返回当前所有在线用户名的有序快照。
func (d *Directory) Users() []string {
	d.mu.RLock()
	users := make([]string, 0, len(d.byUser))
	for user := range d.byUser {
		users = append(users, user)
	}
	d.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Count 返回当前在线用户数。
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}

// Range 遍历当前所有绑定，遍历前复制快照，回调中可安全调用目录方法。
// 回调返回 false 时中断遍历。
func (d *Directory) Range(fn func(user string, p Peer) bool) {
	if fn == nil {
		return
	}

	type binding struct {
		user string
		peer Peer
	}

	d.mu.RLock()
	snapshot := make([]binding, 0, len(d.byUser))
	for user, p := range d.byUser {
		snapshot = append(snapshot, binding{user: user, peer: p})
	}
	d.mu.RUnlock()

	for _, b := range snapshot {
		if !fn(b.user, b.peer) {
			return
		}
	}
}
