package progressbus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexta-labs/filingsrag/internal/core"
)

func TestServeConversation_StreamsPublishedEvents(t *testing.T) {
	bus := NewInMemoryBus()
	hub := NewWebSocketHub(bus)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeConversation(w, r, "conv-1")
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("conv-1") == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish("conv-1", core.ProgressEvent{Kind: core.EventProgressUpdate, Stage: "Downloading", ProgressPercent: 10})

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "Downloading")
	assert.Contains(t, string(msg), "ProcessingUpdate")
}

func TestServeConversation_RemovesConnectionOnClose(t *testing.T) {
	bus := NewInMemoryBus()
	hub := NewWebSocketHub(bus)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeConversation(w, r, "conv-2")
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("conv-2") == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("conv-2") == 0
	}, time.Second, 10*time.Millisecond)
}
