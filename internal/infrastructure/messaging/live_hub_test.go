package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, counter PresenceCounter, tick time.Duration) (*LiveHub, *httptest.Server) {
	t.Helper()
	hub := NewLiveHub(counter, tick, logging.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(NewLiveClient(conn))
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestPublishReachesClients(t *testing.T) {
	hub, srv := startHub(t, nil, time.Hour)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(EventSurveyCreated, map[string]any{"id": 4})
	ev := readEvent(t, conn)
	assert.Equal(t, EventSurveyCreated, ev.Type)
	assert.EqualValues(t, 4, ev.Data.(map[string]any)["id"])
}

func TestPresenceTicks(t *testing.T) {
	counter := func(context.Context) (int, error) { return 3, nil }
	hub, srv := startHub(t, counter, 20*time.Millisecond)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev := readEvent(t, conn)
	assert.Equal(t, EventPresence, ev.Type)
	assert.EqualValues(t, 3, ev.Data.(map[string]any)["onlineUsers"])
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t, nil, time.Hour)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewLiveHub(nil, time.Hour, logging.NewDiscardLogger())
	for i := 0; i < 1000; i++ {
		hub.Publish(EventSurveyDeleted, i)
	}
}
