package store

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

// Store 是全局消息存储：按 ID 索引、只增不删。
//
// 约定：
//   - ID 由 NextID 统一分配，全局严格递增，从 1 开始；
//   - 写入与读取均操作深拷贝，调用方持有的对象与存储互不影响；
//   - 所有方法并发安全。
type Store struct {
	mu    sync.RWMutex
	byID  map[int64]*packet.ChatPacket
	idGen *atomic.Int64
}

// New 创建一个空的消息存储。
func New() *Store {
	return &Store{
		byID:  make(map[int64]*packet.ChatPacket),
		idGen: atomic.NewInt64(0),
	}
}

// NextID 分配下一个消息 ID。首次调用返回 1。
func (s *Store) NextID() int64 {
	return s.idGen.Add(1)
}

// Put 将消息写入存储（存储其深拷贝）。
func (s *Store) Put(p *packet.ChatPacket) {
	if p == nil {
		return
	}
	clone := p.Clone()

	s.mu.Lock()
	s.byID[clone.ID] = clone
	s.mu.Unlock()
}

// Get 按 ID 查找消息，返回其深拷贝。
func (s *Store) Get(id int64) (*packet.ChatPacket, bool) {
	s.mu.RLock()
	p, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Edit 对已存储的消息执行原地编辑。
//
// 规则：
//   - 目标不存在时返回 ErrMessageNotFound；
//   - sender 不是原作者时返回 ErrMessageNotOwned；
//   - 成功时覆盖文本、置 edited 标记，不分配新 ID，返回更新后的深拷贝。
func (s *Store) Edit(id int64, sender, newText string) (*packet.ChatPacket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return nil, merr.WrapErrMessageNotFound(id)
	}
	if stored.From != sender {
		return nil, merr.WrapErrMessageNotOwned(id, sender)
	}

	stored.Text = newText
	stored.Edited = true
	return stored.Clone(), nil
}

// Len 返回当前存储的消息数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
