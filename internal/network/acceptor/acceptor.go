package acceptor

import (
	"context"
	"net"

	"github.com/lk2023060901/chat-garden-go/internal/network/codec"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/internal/network/session"
)

// Handler 由框架使用者实现，用于在服务器侧的各个阶段插入自定义逻辑。
//
// 说明：
//   - OnAccept 负责基于底层连接创建 Session（可返回业务自定义的 Session 实现）；
//   - OnMessage 在单个会话的消费协程中被串行调用，应避免耗时操作阻塞网络收发。
type Handler interface {
	// OnAccept 在接受到新连接后被调用，负责创建会话实例。
	//
	// 返回 (nil, nil) 表示拒绝该连接；返回错误时连接会被直接关闭。
	OnAccept(ctx context.Context, conn net.Conn, c codec.Codec) (session.Session, error)

	// OnMessage 在成功解码出一条消息后被调用。
	//
	// header 为消息头（包含 op/seq/flags 等），payload 为业务明文字节。
	OnMessage(sess session.Session, header *framer.Header, payload []byte)

	// OnSessionClosed 在会话生命周期结束时被调用。
	//
	// 参数 err 为关闭原因，正常关闭时可为 nil。
	OnSessionClosed(sess session.Session, err error)

	// OnError 在会话处理的各个阶段发生错误时被调用。
	//
	// sess 可能为 nil（例如会话尚未创建完成时）。
	OnError(sess session.Session, err error)

	// OnTimeout 在读取或接受连接超时时被调用。
	//
	// 返回非 nil 错误时结束对应的循环，否则忽略本次超时继续处理。
	OnTimeout(sess session.Session) error
}

// Acceptor 抽象了服务器侧的接入层。
//
// 职责：
//   - 在 listener 上循环接受连接；
//   - 为每个连接创建 Session，并调用 Handler 的各阶段回调；
//   - 借助 SessionManager 维护当前活跃会话，便于广播与定向发送。
type Acceptor interface {
	// Serve 启动接入循环，阻塞直至 ctx 取消或出现致命错误。
	Serve(ctx context.Context, h Handler) error

	// Close 关闭监听器。已建立的会话由各自的处理协程负责清理。
	Close() error
}
