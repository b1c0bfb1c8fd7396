package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler streams job progress events to connected clients. Each
// connection follows one job; sub-progress frames are throttled per
// connection while stage transitions and terminal events always go through.
type WebSocketHandler struct {
	broadcaster      interfaces.ProgressBroadcaster
	throttleInterval time.Duration
	logger           arbor.ILogger
}

// NewWebSocketHandler creates the progress stream handler
func NewWebSocketHandler(broadcaster interfaces.ProgressBroadcaster, config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	throttle := 250 * time.Millisecond
	if config != nil && config.ThrottleInterval != "" {
		if parsed, err := time.ParseDuration(config.ThrottleInterval); err == nil {
			throttle = parsed
		} else {
			logger.Warn().Err(err).Str("interval", config.ThrottleInterval).Msg("Invalid websocket throttle interval, using default")
		}
	}
	return &WebSocketHandler{
		broadcaster:      broadcaster,
		throttleInterval: throttle,
		logger:           logger,
	}
}

// HandleWebSocket upgrades the connection and streams events for the job
// named in the job_id query parameter.
// GET /ws?job_id=job_...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, "job_id query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.logger.Debug().Str("job_id", jobID).Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	events, cancel := h.broadcaster.Subscribe(jobID)
	defer cancel()

	var writeMu sync.Mutex
	done := make(chan struct{})

	// Reader goroutine: detect client disconnect and answer pings
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Every(h.throttleInterval), 1)
	lastStage := ""

	for {
		select {
		case <-done:
			h.logger.Debug().Str("job_id", jobID).Msg("WebSocket client disconnected")
			conn.Close()
			return
		case event, ok := <-events:
			if !ok {
				conn.Close()
				return
			}
			// Throttle only intermediate frames within a stage; the first
			// frame of a new stage and terminal events always go through.
			if event.Status == models.EventStatusInProgress && event.Stage == lastStage && !limiter.Allow() {
				continue
			}
			lastStage = event.Stage

			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := conn.WriteJSON(event)
			writeMu.Unlock()
			if err != nil {
				h.logger.Debug().Str("job_id", jobID).Err(err).Msg("WebSocket write failed")
				conn.Close()
				return
			}

			if event.Status == models.EventStatusCompleted || event.Status == models.EventStatusError {
				// Terminal event delivered; close the stream politely.
				writeMu.Lock()
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
					time.Now().Add(time.Second))
				writeMu.Unlock()
				conn.Close()
				return
			}
		}
	}
}
