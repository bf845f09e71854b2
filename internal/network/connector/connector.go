package connector

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	network "github.com/lk2023060901/chat-garden-go/internal/network"
	"github.com/lk2023060901/chat-garden-go/internal/network/codec"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/pkg/util/conc"
)

// Packet 表示一条已解码的入站消息。
type Packet struct {
	Header  *framer.Header
	Payload []byte
}

// Config 描述客户端连接的基础配置。
type Config struct {
	SendQueueSize int
	RecvQueueSize int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Codec 为当前连接使用的编解码器。
	// 用于在 op+msg <-> Envelope(二进制帧) 之间转换。
	Codec codec.Codec
}

func defaultConfig() Config {
	return Config{
		SendQueueSize: 1024,
		RecvQueueSize: 1024,
	}
}

// ClientConn 抽象了客户端侧的一条连接。
//
// 注意：客户端连接不包含会话 ID 概念。
type ClientConn interface {
	Context() context.Context
	RemoteAddr() net.Addr
	LocalAddr() net.Addr

	Send(op uint32, msg any) error
	Recv() <-chan *Packet

	Close() error
}

// ConnectorHandler 描述客户端在各阶段的回调能力。
type ConnectorHandler interface {
	OnConnected(conn ClientConn)
	OnMessage(conn ClientConn, header *framer.Header, payload []byte)
	OnClosed(conn ClientConn, err error)
	OnError(conn ClientConn, stage network.Stage, err error)
}

// Connector 抽象了客户端的拨号器。
type Connector interface {
	Dial(ctx context.Context, addr string, h ConnectorHandler) (ClientConn, error)
}

// tcpConnector 是基于 TCP 的默认 Connector 实现。
type tcpConnector struct {
	cfg Config
}

// NewTCPConnector 创建一个基于 TCP 的 Connector。
func NewTCPConnector(cfg Config) Connector {
	def := defaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.RecvQueueSize <= 0 {
		cfg.RecvQueueSize = def.RecvQueueSize
	}
	if cfg.Codec == nil {
		panic("connector: Codec is nil")
	}
	return &tcpConnector{cfg: cfg}
}

func (c *tcpConnector) Dial(ctx context.Context, addr string, h ConnectorHandler) (ClientConn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(ctx)
	cc := newTCPClientConn(connCtx, cancel, conn, c.cfg, h)
	h.OnConnected(cc)
	return cc, nil
}

// tcpClientConn 是基于 TCP 的 ClientConn 默认实现。
type tcpClientConn struct {
	conn net.Conn

	ctx    context.Context
	cancel context.CancelFunc

	cfg Config
	h   ConnectorHandler

	remoteAddr net.Addr
	localAddr  net.Addr

	sendChan chan outboundMessage
	recvChan chan *Packet

	codec codec.Codec

	// seq 为该连接上由本端发出消息的自增序号。
	seq uint64

	closeOnce sync.Once
}

// outboundMessage 表示一条待发送的业务消息。
type outboundMessage struct {
	op  uint32
	msg any
}

func newTCPClientConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn net.Conn,
	cfg Config,
	h ConnectorHandler,
) *tcpClientConn {
	c := &tcpClientConn{
		conn:       conn,
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		h:          h,
		remoteAddr: conn.RemoteAddr(),
		localAddr:  conn.LocalAddr(),
		sendChan:   make(chan outboundMessage, cfg.SendQueueSize),
		recvChan:   make(chan *Packet, cfg.RecvQueueSize),
		codec:      cfg.Codec,
	}

	// 使用 conc.Go 启动收发协程，避免直接使用原生 go 关键字。
	_ = conc.Go(func() (struct{}, error) {
		c.recvLoop()
		return struct{}{}, nil
	})
	_ = conc.Go(func() (struct{}, error) {
		c.sendLoop()
		return struct{}{}, nil
	})

	return c
}

// ClientConn 接口实现。

func (c *tcpClientConn) Context() context.Context { return c.ctx }
func (c *tcpClientConn) RemoteAddr() net.Addr     { return c.remoteAddr }
func (c *tcpClientConn) LocalAddr() net.Addr      { return c.localAddr }
func (c *tcpClientConn) Recv() <-chan *Packet     { return c.recvChan }
func (c *tcpClientConn) Close() error             { return c.close(nil) }

func (c *tcpClientConn) Send(op uint32, msg any) error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	case c.sendChan <- outboundMessage{op: op, msg: msg}:
		return nil
	}
}

func (c *tcpClientConn) close(cause error) error {
	var err error
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			if cerr := c.conn.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		c.h.OnClosed(c, cause)
	})
	return err
}

// recvLoop 持续从连接中读取并解码消息帧。
func (c *tcpClientConn) recvLoop() {
	// recvChan 仅由本协程写入，因此也只能由本协程在退出时关闭。
	defer func() {
		_ = c.close(nil)
		close(c.recvChan)
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.cfg.ReadTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
				c.h.OnError(c, network.StageRecvRaw, err)
				_ = c.close(network.ErrRecvFailed)
				return
			}
		}

		header, payload, err := c.codec.DecodeRaw(c.conn)
		if err != nil {
			// EOF/连接关闭视为正常断开。
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			c.h.OnError(c, network.StageDecode, err)
			_ = c.close(network.ErrRecvFailed)
			return
		}

		pkt := &Packet{
			Header:  header,
			Payload: payload,
		}

		select {
		case <-c.ctx.Done():
			return
		case c.recvChan <- pkt:
		default:
			// 接收队列已满时丢弃最旧语义从简，直接丢弃本条。
		}

		c.h.OnMessage(c, header, payload)
	}
}

// sendLoop 从 sendChan 读取业务消息并使用 Codec 编码后写入连接。
//
// 发送路径仅在此协程中执行，避免多协程并发写 conn 导致报文交叉。
func (c *tcpClientConn) sendLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}

			c.seq++
			header := &framer.Header{
				Op:        msg.op,
				Seq:       c.seq,
				Timestamp: time.Now().UnixMilli(),
			}

			if c.cfg.WriteTimeout > 0 {
				if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
					c.h.OnError(c, network.StageSend, err)
					_ = c.close(network.ErrSendFailed)
					return
				}
			}

			if err := c.codec.Encode(c.conn, header, msg.msg); err != nil {
				c.h.OnError(c, network.StageEncode, err)
				_ = c.close(network.ErrSendFailed)
				return
			}
		}
	}
}
