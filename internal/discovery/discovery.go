package discovery

import (
	"context"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/lk2023060901/chat-garden-go/internal/json"
	"github.com/lk2023060901/chat-garden-go/pkg/log"
	"github.com/lk2023060901/chat-garden-go/pkg/util/conc"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

// DefaultPrefix 为服务注册键的默认前缀。
const DefaultPrefix = "chat-garden/services"

// RoomServiceName 为房间服务在注册表中的服务名。
const RoomServiceName = "roomapi"

// defaultTTL 为注册租约的默认存活时间。
const defaultTTL = 10 * time.Second

// Entry 描述一个已注册的服务实例。
type Entry struct {
	// Name 为服务名，例如 "roomapi"。
	Name string `json:"name"`
	// Address 为可直接拨通的服务地址，例如 "http://10.0.0.3:8081"。
	Address string `json:"address"`
	// Version 为服务的语义化版本号。
	Version string `json:"version"`
	// RegisteredAt 为注册时刻的 Unix 毫秒时间戳。
	RegisteredAt int64 `json:"registeredAt"`
}

// Registry 基于 etcd 租约实现服务注册与解析。
//
// 注册方持有租约并后台续期；进程退出或崩溃后租约过期，注册键自动消失。
type Registry struct {
	cli    *clientv3.Client
	prefix string
}

// NewRegistry 创建服务注册器。prefix 为空时使用 DefaultPrefix。
func NewRegistry(cli *clientv3.Client, prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{
		cli:    cli,
		prefix: prefix,
	}
}

// Registration 代表一次成功的服务注册，Stop 撤销注册并释放租约。
type Registration struct {
	cancel context.CancelFunc
	done   *conc.Future[struct{}]
}

// Stop 撤销注册。阻塞直至续期协程退出。
func (r *Registration) Stop() {
	r.cancel()
	_ = r.done.Err()
}

// Register 将服务实例写入 etcd 并保持租约续期，直至 ctx 取消或调用 Registration.Stop。
func (r *Registry) Register(ctx context.Context, entry *Entry) (*Registration, error) {
	if entry == nil || entry.Name == "" || entry.Address == "" {
		return nil, merr.WrapErrParameterInvalidMsg("service entry requires name and address")
	}
	entry.RegisteredAt = time.Now().UnixMilli()

	value, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	lease, err := r.cli.Grant(ctx, int64(defaultTTL.Seconds()))
	if err != nil {
		return nil, err
	}

	key := r.key(entry.Name)
	if _, err := r.cli.Put(ctx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		return nil, err
	}

	keepCtx, cancel := context.WithCancel(ctx)
	keepAlive, err := r.cli.KeepAlive(keepCtx, lease.ID)
	if err != nil {
		cancel()
		return nil, err
	}

	log.Info("service registered",
		zap.String("key", key),
		zap.String("address", entry.Address))

	done := conc.Go(func() (struct{}, error) {
		defer func() {
			// 主动撤销租约，让注册键立即消失而不是等待 TTL。
			revokeCtx, revokeCancel := context.WithTimeout(context.Background(), time.Second)
			defer revokeCancel()
			_, _ = r.cli.Revoke(revokeCtx, lease.ID)
		}()

		for {
			select {
			case <-keepCtx.Done():
				return struct{}{}, nil
			case resp, ok := <-keepAlive:
				if !ok || resp == nil {
					log.Warn("service lease keepalive lost",
						zap.String("key", key))
					return struct{}{}, nil
				}
			}
		}
	})

	return &Registration{cancel: cancel, done: done}, nil
}

// Resolve 查找服务实例地址。未注册时返回 ErrServiceUnavailable。
func (r *Registry) Resolve(ctx context.Context, name string) (*Entry, error) {
	resp, err := r.cli.Get(ctx, r.key(name))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, merr.WrapErrServiceUnavailable("service not registered", name)
	}

	entry := &Entry{}
	if err := json.Unmarshal(resp.Kvs[0].Value, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *Registry) key(name string) string {
	return path.Join(r.prefix, name)
}
