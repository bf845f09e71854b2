package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
)

func TestFormatChatPacket(t *testing.T) {
	p := packet.NewPublic("alice", "hello")
	p.ID = 3
	assert.Equal(t, "[PUBLIC] #3 alice: hello", FormatChatPacket(p))

	p = packet.NewDM("alice", "bob", "psst")
	p.ID = 4
	assert.Equal(t, "[DM] #4 alice: psst", FormatChatPacket(p))

	p = packet.NewMcast("alice", []string{"bob", "carol"}, "team")
	p.ID = 5
	p.Edited = true
	assert.Equal(t, "[MCAST] #5 alice (edited): team", FormatChatPacket(p))
}

func TestFormatChatPacketReply(t *testing.T) {
	p := packet.NewReply("alice", 2, "agreed")
	p.ID = 6
	p.ReplyAuthor = "bob"
	p.ReplyExcerpt = "original text"
	assert.Equal(t, `[PUBLIC] #6 alice: agreed >> reply to bob: "original text"`, FormatChatPacket(p))
}

func TestFormatChatPacketEditEvent(t *testing.T) {
	p := &packet.ChatPacket{
		Kind:         packet.KindEdit,
		From:         "alice",
		Text:         "final",
		ID:           1,
		EditTargetID: 1,
		Edited:       true,
	}
	assert.Equal(t, "[EDIT] #1 alice (edited): final", FormatChatPacket(p))
}

func TestFormatUserList(t *testing.T) {
	assert.Equal(t, "Online: alice, bob", FormatUserList([]string{"alice", "bob"}))
	assert.Equal(t, "Online: ", FormatUserList(nil))
}
