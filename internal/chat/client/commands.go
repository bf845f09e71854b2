package client

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// CommandKind 标识一条用户输入解析后的指令类型。
type CommandKind int

const (
	// CmdPublic 为默认指令：整行作为公共消息发送。
	CmdPublic CommandKind = iota
	// CmdQuit 退出客户端（BYE 或输入流结束）。
	CmdQuit
	// CmdWho 请求在线用户列表。
	CmdWho
	// CmdRooms 列出全部房间。
	CmdRooms
	// CmdCreate 创建房间。
	CmdCreate
	// CmdJoin 加入房间并拉取最近历史。
	CmdJoin
	// CmdOlder 分页拉取房间更早的历史。
	CmdOlder
	// CmdRoomSend 在房间内发送消息。
	CmdRoomSend
	// CmdDM 发送私聊消息。
	CmdDM
	// CmdMcast 发送组播消息。
	CmdMcast
	// CmdReply 回复指定消息。
	CmdReply
	// CmdEdit 编辑自己发过的消息。
	CmdEdit
	// CmdUsage 表示输入格式有误，Usage 字段携带提示文本。
	CmdUsage
)

// Command 是一条已解析的用户指令。
type Command struct {
	Kind CommandKind

	// Room 为房间名（create/join/older/room）。
	Room string
	// Target 为私聊目标用户（dm）。
	Target string
	// Targets 为组播目标用户列表（mcast）。
	Targets []string
	// ID 为消息 ID（reply/edit）或分页游标（older）。
	ID int64
	// Text 为消息正文。
	Text string
	// Usage 为格式错误时需要展示的提示。
	Usage string
}

// ParseCommand 将一行用户输入解析为指令。
//
// 语法：
//   BYE / WHO（大小写不敏感）
//   /rooms
//   /create <roomName>
//   /join <roomName>
//   /older <roomName> <beforeMessageId>
//   /room <roomName> <text>
//   /dm <user> <text>
//   /mcast <u1,u2,...> <text>
//   /reply <messageId> <text>
//   /edit <messageId> <newText>
//   其他任意文本作为公共消息发送。
func ParseCommand(line string) Command {
	switch {
	case strings.EqualFold(line, "BYE"):
		return Command{Kind: CmdQuit}
	case strings.EqualFold(line, "WHO"):
		return Command{Kind: CmdWho}
	case line == "/rooms":
		return Command{Kind: CmdRooms}
	}

	switch {
	case strings.HasPrefix(line, "/create "):
		room := strings.TrimSpace(line[len("/create "):])
		if room == "" {
			return usage("Usage: /create <roomName>")
		}
		return Command{Kind: CmdCreate, Room: room}

	case strings.HasPrefix(line, "/join "):
		room := strings.TrimSpace(line[len("/join "):])
		if room == "" {
			return usage("Usage: /join <roomName>")
		}
		return Command{Kind: CmdJoin, Room: room}

	case strings.HasPrefix(line, "/older "):
		parts := strings.Fields(line[len("/older "):])
		if len(parts) < 2 {
			return usage("Usage: /older <roomName> <beforeMessageId>")
		}
		beforeID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return usage("beforeMessageId must be a number.")
		}
		return Command{Kind: CmdOlder, Room: parts[0], ID: beforeID}

	case strings.HasPrefix(line, "/room "):
		room, text, ok := splitFirst(line[len("/room "):])
		if !ok {
			return usage("Usage: /room <roomName> <text>")
		}
		return Command{Kind: CmdRoomSend, Room: room, Text: text}

	case strings.HasPrefix(line, "/dm "):
		target, text, ok := splitFirst(line[len("/dm "):])
		if !ok {
			return usage("Usage: /dm <user> <text>")
		}
		return Command{Kind: CmdDM, Target: target, Text: text}

	case strings.HasPrefix(line, "/mcast "):
		csv, text, ok := splitFirst(line[len("/mcast "):])
		if !ok {
			return usage("Usage: /mcast <u1,u2,...> <text>")
		}
		targets := lo.FilterMap(strings.Split(csv, ","), func(s string, _ int) (string, bool) {
			s = strings.TrimSpace(s)
			return s, s != ""
		})
		if len(targets) == 0 {
			return usage("Usage: /mcast <u1,u2,...> <text>")
		}
		return Command{Kind: CmdMcast, Targets: targets, Text: text}

	case strings.HasPrefix(line, "/reply "):
		idStr, text, ok := splitFirst(line[len("/reply "):])
		if !ok {
			return usage("Usage: /reply <messageId> <text>")
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return usage("Invalid messageId. Example: /reply 12 ok")
		}
		return Command{Kind: CmdReply, ID: id, Text: text}

	case strings.HasPrefix(line, "/edit "):
		idStr, text, ok := splitFirst(line[len("/edit "):])
		if !ok {
			return usage("Usage: /edit <messageId> <newText>")
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return usage("Invalid messageId. Example: /edit 12 new text")
		}
		return Command{Kind: CmdEdit, ID: id, Text: text}
	}

	return Command{Kind: CmdPublic, Text: line}
}

// splitFirst 将 "head rest..." 按第一个空格拆为两段。
func splitFirst(s string) (head, rest string, ok bool) {
	s = strings.TrimSpace(s)
	sp := strings.IndexByte(s, ' ')
	if sp < 0 {
		return "", "", false
	}
	return s[:sp], s[sp+1:], true
}

func usage(text string) Command {
	return Command{Kind: CmdUsage, Usage: text}
}
