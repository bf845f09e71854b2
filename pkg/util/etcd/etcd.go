package etcd

import (
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/lk2023060901/chat-garden-go/pkg/log"
)

// defaultDialTimeout 为建立 etcd 连接的默认超时时间。
const defaultDialTimeout = 5 * time.Second

// NewClient 创建一个 etcd v3 客户端。
// 客户端内部日志复用进程全局 zap logger。
func NewClient(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Logger:      log.L(),
	})
}
