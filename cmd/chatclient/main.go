package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/chat-garden-go/application"
	chatclient "github.com/lk2023060901/chat-garden-go/internal/chat/client"
	"github.com/lk2023060901/chat-garden-go/internal/discovery"
	"github.com/lk2023060901/chat-garden-go/internal/network/codec"
	"github.com/lk2023060901/chat-garden-go/internal/network/connector"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/internal/network/serializer"
	"github.com/lk2023060901/chat-garden-go/internal/roomapi"
	"github.com/lk2023060901/chat-garden-go/pkg/log"
	etcdutil "github.com/lk2023060901/chat-garden-go/pkg/util/etcd"
)

// clientConfig 为 chatclient 的配置结构。
type clientConfig struct {
	Client struct {
		// ServerAddr 为聊天服务器 TCP 地址。
		ServerAddr string `mapstructure:"serverAddr"`
		// RoomAPIAddr 为房间服务地址；配置了 etcd 时优先使用 etcd 解析结果。
		RoomAPIAddr string `mapstructure:"roomApiAddr"`
		// DialTimeoutSeconds 为连接聊天服务器的超时秒数。
		DialTimeoutSeconds int `mapstructure:"dialTimeoutSeconds"`
	} `mapstructure:"client"`

	Etcd struct {
		// Enable 控制是否通过 etcd 解析房间服务地址。
		Enable bool `mapstructure:"enable"`
		// Endpoints 为 etcd 集群地址。
		Endpoints []string `mapstructure:"endpoints"`
		// DialTimeoutSeconds 为连接 etcd 的超时秒数。
		DialTimeoutSeconds int `mapstructure:"dialTimeoutSeconds"`
	} `mapstructure:"etcd"`
}

func defaultClientConfig() *clientConfig {
	cfg := &clientConfig{}
	cfg.Client.ServerAddr = "127.0.0.1:54555"
	cfg.Client.DialTimeoutSeconds = 5
	cfg.Etcd.Endpoints = []string{"127.0.0.1:2379"}
	cfg.Etcd.DialTimeoutSeconds = 5
	return cfg
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chatclient:", err)
		os.Exit(1)
	}
}

func run() error {
	userName := ""
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--user" && i+1 < len(args):
			userName = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--user="):
			userName = strings.TrimPrefix(args[i], "--user=")
		}
	}
	if userName == "" {
		return fmt.Errorf("usage: chatclient --user <userName> [--config <path>]")
	}

	app := application.New()
	if err := app.Run(); err != nil {
		return err
	}

	cfg := defaultClientConfig()
	if err := app.Config().Unmarshal(cfg); err != nil {
		return err
	}

	c, err := codec.New(codec.Options{
		Framer:     framer.NewLengthPrefixedFramer(0),
		Serializer: serializer.JSONSerializer{},
	})
	if err != nil {
		return err
	}

	roomsClient := buildRoomsClient(cfg)
	if roomsClient == nil {
		fmt.Println("WARNING: room service not configured. Rooms/history won't work.")
	}

	cli := chatclient.New(chatclient.Options{
		UserName:   userName,
		ServerAddr: cfg.Client.ServerAddr,
		Connector: connector.NewTCPConnector(connector.Config{
			DialTimeout: time.Duration(cfg.Client.DialTimeoutSeconds) * time.Second,
			Codec:       c,
		}),
		Rooms: roomsClient,
		In:    os.Stdin,
		Out:   os.Stdout,
	})

	return cli.Run(context.Background())
}

// buildRoomsClient 解析房间服务地址并创建客户端。
// 优先通过 etcd 解析，失败时回退到配置中的静态地址；两者都不可用时返回 nil。
func buildRoomsClient(cfg *clientConfig) *roomapi.Client {
	addr := cfg.Client.RoomAPIAddr

	if cfg.Etcd.Enable {
		if resolved := resolveViaEtcd(cfg); resolved != "" {
			addr = resolved
		}
	}

	if addr == "" {
		return nil
	}
	return roomapi.NewClient(addr)
}

func resolveViaEtcd(cfg *clientConfig) string {
	cli, err := etcdutil.NewClient(cfg.Etcd.Endpoints,
		time.Duration(cfg.Etcd.DialTimeoutSeconds)*time.Second)
	if err != nil {
		log.Warn("etcd unreachable, falling back to configured room service address", zap.Error(err))
		return ""
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	entry, err := discovery.NewRegistry(cli, "").Resolve(ctx, discovery.RoomServiceName)
	if err != nil {
		log.Warn("room service not found in etcd", zap.Error(err))
		return ""
	}
	return entry.Address
}
