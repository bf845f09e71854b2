package roomapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-garden-go/internal/json"
	"github.com/lk2023060901/chat-garden-go/pkg/util/merr"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func TestClientCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/rooms", r.URL.Path)

		var req CreateRoomRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "general", req.Name)
		assert.Equal(t, "alice", req.Owner)

		writeJSON(t, w, http.StatusCreated, &CreateRoomResponse{
			Status:  merr.StatusOf(nil),
			Created: true,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	created, err := client.CreateRoom(context.Background(), "general", "alice")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestClientRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, http.StatusOK, &ListRoomsResponse{
			Status: merr.StatusOf(nil),
			Rooms:  []string{"general"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithMaxRetries(5))
	names, err := client.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, names)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusBadRequest, map[string]any{
			"status": merr.StatusOf(merr.WrapErrParameterInvalidMsg("bad input")),
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithMaxRetries(5))
	_, err := client.ListRooms(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClientJoinRoomPathEscaped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rooms/dev%20ops/join", r.URL.EscapedPath())
		writeJSON(t, w, http.StatusOK, &JoinRoomResponse{Status: merr.StatusOf(nil)})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	messages, err := client.JoinRoom(context.Background(), "dev ops", "bob")
	require.NoError(t, err)
	assert.Empty(t, messages)
}
