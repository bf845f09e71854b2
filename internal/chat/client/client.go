package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/internal/json"
	network "github.com/lk2023060901/chat-garden-go/internal/network"
	"github.com/lk2023060901/chat-garden-go/internal/network/connector"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/internal/roomapi"
	"github.com/lk2023060901/chat-garden-go/pkg/log"
)

// Options 配置一个交互式聊天客户端。
type Options struct {
	// UserName 为登录用户名。
	UserName string
	// ServerAddr 为聊天服务器的 TCP 地址。
	ServerAddr string
	// Connector 为底层拨号器。
	Connector connector.Connector
	// Rooms 为房间服务客户端；为 nil 时房间相关指令不可用。
	Rooms *roomapi.Client

	// In/Out 为交互输入输出流，默认应传入 os.Stdin/os.Stdout。
	In  io.Reader
	Out io.Writer
}

// Client 是面向终端的交互式聊天客户端。
//
// 读取 In 中的指令行并发送给服务器；服务器推送的消息实时打印到 Out。
type Client struct {
	opts Options
	conn connector.ClientConn

	done chan struct{}
}

// New 创建交互式客户端。
func New(opts Options) *Client {
	return &Client{
		opts: opts,
		done: make(chan struct{}),
	}
}

// Run 连接服务器并进入交互循环，阻塞直至用户退出或连接断开。
func (c *Client) Run(ctx context.Context) error {
	conn, err := c.opts.Connector.Dial(ctx, c.opts.ServerAddr, c)
	if err != nil {
		return err
	}
	c.conn = conn
	defer conn.Close()

	scanner := bufio.NewScanner(c.opts.In)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		if !scanner.Scan() {
			// 输入流结束等价于 BYE。
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := c.exec(ctx, line); quit {
			return nil
		}
	}
}

// exec 执行一条指令，返回 true 表示用户请求退出。
func (c *Client) exec(ctx context.Context, line string) bool {
	cmd := ParseCommand(line)

	switch cmd.Kind {
	case CmdQuit:
		return true

	case CmdUsage:
		c.println(cmd.Usage)

	case CmdWho:
		c.send(packet.OpWho, &packet.WhoRequest{})

	case CmdRooms:
		if !c.requireRooms() {
			return false
		}
		names, err := c.opts.Rooms.ListRooms(ctx)
		if err != nil {
			c.println("Room service error: " + err.Error())
			return false
		}
		if len(names) == 0 {
			c.println("(no rooms)")
			return false
		}
		for _, name := range names {
			c.println("- " + name)
		}

	case CmdCreate:
		if !c.requireRooms() {
			return false
		}
		created, err := c.opts.Rooms.CreateRoom(ctx, cmd.Room, c.opts.UserName)
		if err != nil {
			c.println("Room service error: " + err.Error())
			return false
		}
		if created {
			c.println("Room created: " + cmd.Room)
		} else {
			c.println("Room already exists: " + cmd.Room)
		}

	case CmdJoin:
		if !c.requireRooms() {
			return false
		}
		history, err := c.opts.Rooms.JoinRoom(ctx, cmd.Room, c.opts.UserName)
		if err != nil {
			c.println("Room service error: " + err.Error())
			return false
		}
		c.println(fmt.Sprintf("Joined room: %s | last %d messages:", cmd.Room, len(history)))
		for _, p := range history {
			c.println(FormatChatPacket(p))
		}

	case CmdOlder:
		if !c.requireRooms() {
			return false
		}
		older, err := c.opts.Rooms.LoadOlderMessages(ctx, cmd.Room, cmd.ID, roomapi.DefaultPageSize)
		if err != nil {
			c.println("Room service error: " + err.Error())
			return false
		}
		c.println(fmt.Sprintf("Older messages (%d):", len(older)))
		for _, p := range older {
			c.println(FormatChatPacket(p))
		}

	case CmdRoomSend:
		c.send(packet.OpChat, packet.NewRoom(c.opts.UserName, cmd.Room, cmd.Text))

	case CmdDM:
		c.send(packet.OpChat, packet.NewDM(c.opts.UserName, cmd.Target, cmd.Text))

	case CmdMcast:
		c.send(packet.OpChat, packet.NewMcast(c.opts.UserName, cmd.Targets, cmd.Text))

	case CmdReply:
		c.send(packet.OpChat, packet.NewReply(c.opts.UserName, cmd.ID, cmd.Text))

	case CmdEdit:
		c.send(packet.OpChat, packet.NewEdit(c.opts.UserName, cmd.ID, cmd.Text))

	default:
		c.send(packet.OpChat, packet.NewPublic(c.opts.UserName, cmd.Text))
	}
	return false
}

func (c *Client) requireRooms() bool {
	if c.opts.Rooms == nil {
		c.println("Room service not available.")
		return false
	}
	return true
}

func (c *Client) send(op uint32, msg any) {
	if err := c.conn.Send(op, msg); err != nil {
		c.println("Send failed: " + err.Error())
	}
}

func (c *Client) println(text string) {
	fmt.Fprintln(c.opts.Out, text)
}

// OnConnected 实现 connector.ConnectorHandler：连接建立后立即登录。
func (c *Client) OnConnected(conn connector.ClientConn) {
	_ = conn.Send(packet.OpLogin, &packet.Login{UserName: c.opts.UserName})
}

// OnMessage 实现 connector.ConnectorHandler：按协议号解码并打印。
func (c *Client) OnMessage(_ connector.ClientConn, header *framer.Header, payload []byte) {
	switch header.Op {
	case packet.OpChat:
		p := &packet.ChatPacket{}
		if err := json.Unmarshal(payload, p); err != nil {
			log.Warn("malformed chat packet", zap.Error(err))
			return
		}
		c.println(FormatChatPacket(p))

	case packet.OpInfo:
		info := &packet.Info{}
		if err := json.Unmarshal(payload, info); err != nil {
			log.Warn("malformed info message", zap.Error(err))
			return
		}
		c.println(info.Text)

	case packet.OpUserList:
		list := &packet.UserList{}
		if err := json.Unmarshal(payload, list); err != nil {
			log.Warn("malformed user list", zap.Error(err))
			return
		}
		c.println(FormatUserList(list.Users))

	default:
		log.Debug("unexpected op from server", zap.Uint32("op", header.Op))
	}
}

// OnClosed 实现 connector.ConnectorHandler。
func (c *Client) OnClosed(_ connector.ClientConn, err error) {
	if err != nil {
		c.println("Disconnected: " + err.Error())
	} else {
		c.println("Disconnected.")
	}
	close(c.done)
}

// OnError 实现 connector.ConnectorHandler。
func (c *Client) OnError(_ connector.ClientConn, stage network.Stage, err error) {
	log.Warn("connection error",
		zap.String("stage", string(stage)),
		zap.Error(err))
}

// FormatChatPacket 将消息渲染为终端展示文本。
func FormatChatPacket(p *packet.ChatPacket) string {
	if p.Kind == packet.KindEdit {
		return fmt.Sprintf("[EDIT] #%d %s (edited): %s", p.EditTargetID, p.From, p.Text)
	}

	var prefix string
	switch p.Kind {
	case packet.KindDM:
		prefix = "[DM]"
	case packet.KindMcast:
		prefix = "[MCAST]"
	default:
		prefix = "[PUBLIC]"
	}

	edited := ""
	if p.Edited {
		edited = " (edited)"
	}

	reply := ""
	if p.ReplyToID > 0 {
		reply = fmt.Sprintf(" >> reply to %s: %q", p.ReplyAuthor, p.ReplyExcerpt)
	}

	return fmt.Sprintf("%s #%d %s%s: %s%s", prefix, p.ID, p.From, edited, p.Text, reply)
}

// FormatUserList 渲染在线用户列表。
func FormatUserList(users []string) string {
	return "Online: " + strings.Join(users, ", ")
}
