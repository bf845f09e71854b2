package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/chat-garden-go/application"
	"github.com/lk2023060901/chat-garden-go/internal/chat/directory"
	"github.com/lk2023060901/chat-garden-go/internal/chat/hub"
	"github.com/lk2023060901/chat-garden-go/internal/chat/rooms"
	"github.com/lk2023060901/chat-garden-go/internal/chat/store"
	"github.com/lk2023060901/chat-garden-go/internal/discovery"
	"github.com/lk2023060901/chat-garden-go/internal/network/acceptor"
	"github.com/lk2023060901/chat-garden-go/internal/network/codec"
	"github.com/lk2023060901/chat-garden-go/internal/network/compressor"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/internal/network/serializer"
	"github.com/lk2023060901/chat-garden-go/internal/network/session"
	"github.com/lk2023060901/chat-garden-go/internal/roomapi"
	"github.com/lk2023060901/chat-garden-go/pkg/log"
	"github.com/lk2023060901/chat-garden-go/pkg/metrics"
	etcdutil "github.com/lk2023060901/chat-garden-go/pkg/util/etcd"
	"github.com/lk2023060901/chat-garden-go/pkg/util/funcutil"
	"github.com/lk2023060901/chat-garden-go/pkg/util/retry"
	"github.com/lk2023060901/chat-garden-go/pkg/version"
)

// serverConfig 为 chatserver 的配置结构，对应配置文件的 server/etcd 段。
type serverConfig struct {
	Server struct {
		// ListenAddr 为聊天服务器 TCP 监听地址。
		ListenAddr string `mapstructure:"listenAddr"`
		// RoomAPIAddr 为房间服务 HTTP 监听地址。
		RoomAPIAddr string `mapstructure:"roomApiAddr"`
		// MetricsAddr 为 Prometheus 指标端口，为空时不启动。
		MetricsAddr string `mapstructure:"metricsAddr"`
		// AdvertiseHost 为对外公布的主机名/IP，为空时自动探测本机地址。
		AdvertiseHost string `mapstructure:"advertiseHost"`
		// EnableCompression 控制是否开启 zstd 压缩。
		EnableCompression bool `mapstructure:"enableCompression"`
	} `mapstructure:"server"`

	Etcd struct {
		// Enable 控制是否向 etcd 注册房间服务地址。
		Enable bool `mapstructure:"enable"`
		// Endpoints 为 etcd 集群地址。
		Endpoints []string `mapstructure:"endpoints"`
		// DialTimeoutSeconds 为连接 etcd 的超时秒数。
		DialTimeoutSeconds int `mapstructure:"dialTimeoutSeconds"`
	} `mapstructure:"etcd"`
}

func defaultServerConfig() *serverConfig {
	cfg := &serverConfig{}
	cfg.Server.ListenAddr = ":54555"
	cfg.Server.RoomAPIAddr = ":8081"
	cfg.Server.MetricsAddr = ":9091"
	cfg.Etcd.Endpoints = []string{"127.0.0.1:2379"}
	cfg.Etcd.DialTimeoutSeconds = 5
	return cfg
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chatserver:", err)
		os.Exit(1)
	}
}

func run() error {
	app := application.New()
	if err := app.Run(); err != nil {
		return err
	}

	cfg := defaultServerConfig()
	if err := app.Config().Unmarshal(cfg); err != nil {
		return err
	}

	log.Info("chatserver starting",
		zap.String("version", version.String()),
		zap.String("listen", cfg.Server.ListenAddr),
		zap.String("roomApi", cfg.Server.RoomAPIAddr))

	metrics.Register(prometheus.DefaultRegisterer)

	c, zstd, err := buildCodec(cfg.Server.EnableCompression)
	if err != nil {
		return err
	}
	if zstd != nil {
		defer zstd.Close()
	}

	dir := directory.New()
	st := store.New()
	reg := rooms.NewRegistry()

	chatHub, err := hub.New(dir, st, reg)
	if err != nil {
		return err
	}

	acc, err := acceptor.NewTCPAcceptor(cfg.Server.ListenAddr, c, session.NewBaseSessionManager())
	if err != nil {
		return err
	}

	roomServer := roomapi.NewServer(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return acc.Serve(ctx, chatHub)
	})

	group.Go(func() error {
		return roomServer.Listen(cfg.Server.RoomAPIAddr)
	})

	if cfg.Server.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.Server.MetricsAddr,
			Handler: promhttp.Handler(),
		}
		group.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.Etcd.Enable {
		registration, err := registerRoomService(ctx, cfg)
		if err != nil {
			return err
		}
		defer registration.Stop()
	}

	// ctx 取消后关闭两个监听器，促使 Serve/Listen 返回。
	group.Go(func() error {
		<-ctx.Done()
		_ = acc.Close()
		_ = roomServer.Shutdown()
		return nil
	})

	err = group.Wait()
	if err == context.Canceled {
		err = nil
	}
	log.Info("chatserver stopped", zap.Error(err))
	_ = log.Sync()
	return err
}

// buildCodec 构造服务器使用的编解码器。开启压缩时返回对应的 zstd 实例以便关闭。
func buildCodec(enableCompression bool) (codec.Codec, *compressor.ZstdCompressor, error) {
	opts := codec.Options{
		Framer:     framer.NewLengthPrefixedFramer(0),
		Serializer: serializer.JSONSerializer{},
	}

	var zstd *compressor.ZstdCompressor
	if enableCompression {
		zc, err := compressor.NewZstdCompressor()
		if err != nil {
			return nil, nil, err
		}
		zstd = zc
		opts.Compressor = zc
		opts.EnableCompression = true
	}

	c, err := codec.New(opts)
	if err != nil {
		if zstd != nil {
			zstd.Close()
		}
		return nil, nil, err
	}
	return c, zstd, nil
}

// registerRoomService 将房间服务地址注册到 etcd，注册失败时按退避重试。
func registerRoomService(ctx context.Context, cfg *serverConfig) (*discovery.Registration, error) {
	cli, err := etcdutil.NewClient(cfg.Etcd.Endpoints,
		time.Duration(cfg.Etcd.DialTimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	host := cfg.Server.AdvertiseHost
	if host == "" {
		host = funcutil.GetLocalIP()
	}
	_, port, err := net.SplitHostPort(cfg.Server.RoomAPIAddr)
	if err != nil {
		return nil, err
	}

	entry := &discovery.Entry{
		Name:    discovery.RoomServiceName,
		Address: fmt.Sprintf("http://%s:%s", host, port),
		Version: version.Version,
	}

	reg := discovery.NewRegistry(cli, "")
	var registration *discovery.Registration
	err = retry.Do(ctx, func() error {
		r, rerr := reg.Register(ctx, entry)
		if rerr != nil {
			return rerr
		}
		registration = r
		return nil
	}, retry.Attempts(5))
	if err != nil {
		return nil, err
	}
	return registration, nil
}
