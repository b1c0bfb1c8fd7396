package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/services/events"
)

// dialProgressStream connects a websocket client to the handler for the job
// and waits long enough for the subscription to register.
func dialProgressStream(t *testing.T, h *WebSocketHandler, jobID string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?job_id=" + jobID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ProgressEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.ProgressEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketDeliversStageTransitionsDespiteThrottle(t *testing.T) {
	b := events.NewBroadcaster(16, arbor.NewLogger())
	defer b.Close()

	// An hour-long throttle interval: only the burst token and the
	// exemptions let frames through.
	h := NewWebSocketHandler(b, &common.WebSocketConfig{ThrottleInterval: "1h"}, arbor.NewLogger())
	conn, cleanup := dialProgressStream(t, h, "job_ws1")
	defer cleanup()

	ctx := context.Background()
	publish := func(stage, message string, status models.EventStatus, progress int) {
		b.Publish(ctx, models.ProgressEvent{
			JobID:    "job_ws1",
			Stage:    stage,
			Message:  message,
			Status:   status,
			Progress: progress,
		})
	}

	publish("analyzing_image", "first frame", models.EventStatusInProgress, 5)
	publish("analyzing_image", "burst frame", models.EventStatusInProgress, 20)
	publish("analyzing_image", "throttled frame", models.EventStatusInProgress, 30)
	publish("enriching", "stage change", models.EventStatusInProgress, 40)
	publish("completed", "done", models.EventStatusCompleted, 100)

	// The throttled frame must be skipped; everything else arrives in order.
	assert.Equal(t, "first frame", readEvent(t, conn).Message)
	assert.Equal(t, "burst frame", readEvent(t, conn).Message)

	stageChange := readEvent(t, conn)
	assert.Equal(t, "stage change", stageChange.Message)
	assert.Equal(t, "enriching", stageChange.Stage)

	terminal := readEvent(t, conn)
	assert.Equal(t, models.EventStatusCompleted, terminal.Status)
	assert.Equal(t, 100, terminal.Progress)

	// After the terminal event the server closes the stream.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestWebSocketRequiresJobID(t *testing.T) {
	b := events.NewBroadcaster(16, arbor.NewLogger())
	defer b.Close()
	h := NewWebSocketHandler(b, nil, arbor.NewLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketDeliversErrorEventAndCloses(t *testing.T) {
	b := events.NewBroadcaster(16, arbor.NewLogger())
	defer b.Close()
	h := NewWebSocketHandler(b, &common.WebSocketConfig{ThrottleInterval: "1h"}, arbor.NewLogger())
	conn, cleanup := dialProgressStream(t, h, "job_ws2")
	defer cleanup()

	b.Publish(context.Background(), models.ProgressEvent{
		JobID:   "job_ws2",
		Stage:   "failed",
		Message: "Identification: service unavailable",
		Status:  models.EventStatusError,
	})

	ev := readEvent(t, conn)
	assert.Equal(t, models.EventStatusError, ev.Status)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
