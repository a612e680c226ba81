package alerts

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

func dialStream(t *testing.T, srv *httptest.Server, patientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/patients/" + patientID + "/alerts/stream"
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestHub_StreamsHistoryThenLiveAlerts(t *testing.T) {
	store := NewMemoryStore(10)
	require.NoError(t, store.Append(context.Background(), "p1", newAlert("old")))
	hub := NewHub(logging.Default())

	r := chi.NewRouter()
	r.Get("/api/patients/{patientID}/alerts/stream", NewHandler(store, hub, logging.Default()).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialStream(t, srv, "p1")
	history := receive(t, conn)
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Alerts, 1)
	assert.Equal(t, "old", history.Alerts[0].ID)

	require.Eventually(t, func() bool { return hub.Subscribers("p1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("p2", []vitals.VitalAlert{newAlert("other")})
	hub.Publish("p1", []vitals.VitalAlert{newAlert("new")})
	live := receive(t, conn)
	assert.Equal(t, "alerts", live.Type)
	require.Len(t, live.Alerts, 1)
	assert.Equal(t, "new", live.Alerts[0].ID)

	require.NoError(t, websocket.JSON.Send(conn, map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("p1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish("p1", []vitals.VitalAlert{newAlert("a1")})
	hub.Publish("p1", nil)

	var nilHub *Hub
	nilHub.Publish("p1", []vitals.VitalAlert{newAlert("a1")})
	assert.Equal(t, 0, hub.Subscribers("p1"))
}

func TestHub_SendReportsDeadlineError(t *testing.T) {
	hub := NewHub(logging.Default())
	err := hub.send(&websocket.Conn{}, StreamMessage{Type: "pong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alerts: set write deadline")
}
