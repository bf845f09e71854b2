package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseControlCommands(t *testing.T) {
	assert.Equal(t, CmdQuit, ParseCommand("BYE").Kind)
	assert.Equal(t, CmdQuit, ParseCommand("bye").Kind)
	assert.Equal(t, CmdWho, ParseCommand("WHO").Kind)
	assert.Equal(t, CmdWho, ParseCommand("who").Kind)
	assert.Equal(t, CmdRooms, ParseCommand("/rooms").Kind)
}

func TestParseCreateJoin(t *testing.T) {
	cmd := ParseCommand("/create general")
	assert.Equal(t, CmdCreate, cmd.Kind)
	assert.Equal(t, "general", cmd.Room)

	cmd = ParseCommand("/join general")
	assert.Equal(t, CmdJoin, cmd.Kind)
	assert.Equal(t, "general", cmd.Room)

	assert.Equal(t, CmdUsage, ParseCommand("/create ").Kind)
	assert.Equal(t, CmdUsage, ParseCommand("/join   ").Kind)
}

func TestParseOlder(t *testing.T) {
	cmd := ParseCommand("/older general 42")
	assert.Equal(t, CmdOlder, cmd.Kind)
	assert.Equal(t, "general", cmd.Room)
	assert.EqualValues(t, 42, cmd.ID)

	assert.Equal(t, CmdUsage, ParseCommand("/older general").Kind)
	assert.Equal(t, CmdUsage, ParseCommand("/older general abc").Kind)
}

func TestParseRoomSend(t *testing.T) {
	cmd := ParseCommand("/room general hello everyone")
	assert.Equal(t, CmdRoomSend, cmd.Kind)
	assert.Equal(t, "general", cmd.Room)
	assert.Equal(t, "hello everyone", cmd.Text)

	assert.Equal(t, CmdUsage, ParseCommand("/room general").Kind)
}

func TestParseDM(t *testing.T) {
	cmd := ParseCommand("/dm bob hi there")
	assert.Equal(t, CmdDM, cmd.Kind)
	assert.Equal(t, "bob", cmd.Target)
	assert.Equal(t, "hi there", cmd.Text)

	assert.Equal(t, CmdUsage, ParseCommand("/dm bob").Kind)
}

func TestParseMcast(t *testing.T) {
	cmd := ParseCommand("/mcast bob, carol , dave team update")
	assert.Equal(t, CmdMcast, cmd.Kind)
	assert.Equal(t, []string{"bob"}, cmd.Targets)

	cmd = ParseCommand("/mcast bob,carol,dave team update")
	assert.Equal(t, CmdMcast, cmd.Kind)
	assert.Equal(t, []string{"bob", "carol", "dave"}, cmd.Targets)
	assert.Equal(t, "team update", cmd.Text)

	cmd = ParseCommand("/mcast ,, hello")
	assert.Equal(t, CmdUsage, cmd.Kind)
}

func TestParseReplyEdit(t *testing.T) {
	cmd := ParseCommand("/reply 12 agreed")
	assert.Equal(t, CmdReply, cmd.Kind)
	assert.EqualValues(t, 12, cmd.ID)
	assert.Equal(t, "agreed", cmd.Text)

	cmd = ParseCommand("/edit 7 fixed wording")
	assert.Equal(t, CmdEdit, cmd.Kind)
	assert.EqualValues(t, 7, cmd.ID)
	assert.Equal(t, "fixed wording", cmd.Text)

	assert.Equal(t, CmdUsage, ParseCommand("/reply abc text").Kind)
	assert.Equal(t, CmdUsage, ParseCommand("/edit twelve text").Kind)
}

func TestParseDefaultIsPublic(t *testing.T) {
	cmd := ParseCommand("just chatting")
	assert.Equal(t, CmdPublic, cmd.Kind)
	assert.Equal(t, "just chatting", cmd.Text)
}
