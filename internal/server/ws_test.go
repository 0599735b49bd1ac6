package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialChatSocket(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestChatSocketStreamsChunksAndDone(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.RegisterRoutes())
	defer ts.Close()

	conn := dialChatSocket(t, ts.URL+"/chat/ws")
	require.NoError(t, conn.WriteJSON(ChatRequest{UserID: "alice", Message: "hi"}))

	var events []chatEvent
	for {
		var ev chatEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type == "done" {
			break
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, chatEvent{Content: "Hello", Type: "chunk"}, events[0])
	assert.Equal(t, chatEvent{Content: " there", Type: "chunk"}, events[1])
}

func TestChatSocketRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.RegisterRoutes())
	defer ts.Close()

	conn := dialChatSocket(t, ts.URL+"/chat/ws")
	require.NoError(t, conn.WriteJSON(ChatRequest{UserID: "alice"}))

	var ev chatEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
}

func TestChatSocketUnwindsOnContextCancel(t *testing.T) {
	srv := newTestServer(t)
	e := echo.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlerDone := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := e.NewContext(r.WithContext(ctx), w)
		_ = srv.chatSocketHandler(c)
		close(handlerDone)
	}))
	defer ts.Close()

	dialChatSocket(t, ts.URL)

	// The client sends nothing, leaving the read pump blocked.
	// Cancellation alone must still unwind the handler.
	cancel()
	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("socket handler did not unwind after cancellation")
	}
}
