package roomapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/chat/packet"
	"github.com/lk2023060901/chat-garden-go/internal/chat/rooms"
	"github.com/lk2023060901/chat-garden-go/internal/json"
)

type serverEnv struct {
	t      *testing.T
	server *Server
	reg    *rooms.Registry
}

func newServerEnv(t *testing.T) *serverEnv {
	reg := rooms.NewRegistry()
	return &serverEnv{
		t:      t,
		server: NewServer(reg),
		reg:    reg,
	}
}

func (e *serverEnv) request(method, path string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.App().Test(req)
	require.NoError(e.t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) *T {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := new(T)
	require.NoError(t, json.Unmarshal(data, out))
	return out
}

func TestCreateRoom(t *testing.T) {
	env := newServerEnv(t)

	resp := env.request(http.MethodPost, "/api/v1/rooms", &CreateRoomRequest{Name: "general", Owner: "alice"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody[CreateRoomResponse](t, resp)
	assert.True(t, body.Created)
	assert.EqualValues(t, 0, body.Status.Code)

	// 同名重复创建：非错误，created=false。
	resp = env.request(http.MethodPost, "/api/v1/rooms", &CreateRoomRequest{Name: "general", Owner: "bob"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody[CreateRoomResponse](t, resp)
	assert.False(t, body.Created)

	assert.Equal(t, []string{"alice"}, env.reg.Members("general"))
}

func TestCreateRoomValidation(t *testing.T) {
	env := newServerEnv(t)

	resp := env.request(http.MethodPost, "/api/v1/rooms", &CreateRoomRequest{Name: "", Owner: "alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[CreateRoomResponse](t, resp)
	require.NotNil(t, body.Status)
	assert.NotZero(t, body.Status.Code)
}

func TestListRooms(t *testing.T) {
	env := newServerEnv(t)
	env.reg.Create("beta", "alice")
	env.reg.Create("alpha", "alice")

	resp := env.request(http.MethodGet, "/api/v1/rooms", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[ListRoomsResponse](t, resp)
	assert.Equal(t, []string{"alpha", "beta"}, body.Rooms)
}

func TestJoinRoomReturnsHistory(t *testing.T) {
	env := newServerEnv(t)
	env.reg.Create("general", "alice")
	for i := 1; i <= 12; i++ {
		p := packet.NewPublic("alice", "msg")
		p.ID = int64(i)
		env.reg.Append("general", p)
	}

	resp := env.request(http.MethodPost, "/api/v1/rooms/general/join", &JoinRoomRequest{User: "bob"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[JoinRoomResponse](t, resp)
	require.Len(t, body.Messages, rooms.JoinSnapshotSize)
	assert.EqualValues(t, 3, body.Messages[0].ID)
	assert.EqualValues(t, 12, body.Messages[len(body.Messages)-1].ID)
	assert.True(t, env.reg.IsMember("general", "bob"))
}

func TestJoinUnknownRoomReturnsEmpty(t *testing.T) {
	env := newServerEnv(t)

	resp := env.request(http.MethodPost, "/api/v1/rooms/ghost/join", &JoinRoomRequest{User: "bob"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[JoinRoomResponse](t, resp)
	assert.EqualValues(t, 0, body.Status.Code)
	assert.Empty(t, body.Messages)
}

func TestLoadOlderMessages(t *testing.T) {
	env := newServerEnv(t)
	env.reg.Create("general", "alice")
	for i := 1; i <= 10; i++ {
		p := packet.NewPublic("alice", "msg")
		p.ID = int64(i)
		env.reg.Append("general", p)
	}

	resp := env.request(http.MethodGet, "/api/v1/rooms/general/messages?before=8&limit=3", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[MessagesResponse](t, resp)
	require.Len(t, body.Messages, 3)
	assert.EqualValues(t, 5, body.Messages[0].ID)
	assert.EqualValues(t, 7, body.Messages[2].ID)
}

func TestLoadOlderInvalidParams(t *testing.T) {
	env := newServerEnv(t)
	env.reg.Create("general", "alice")

	resp := env.request(http.MethodGet, "/api/v1/rooms/general/messages?before=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(http.MethodGet, "/api/v1/rooms/general/messages?before=5&limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
