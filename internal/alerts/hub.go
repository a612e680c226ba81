package alerts

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// StreamMessage is what live dashboard clients receive.
type StreamMessage struct {
	Type   string              `json:"type"` // "alerts", "history", "pong", "error"
	Alerts []vitals.VitalAlert `json:"alerts,omitempty"`
	Text   string              `json:"text,omitempty"`
}

type subscriber struct {
	ch chan StreamMessage
}

// Hub fans alerts out to websocket subscribers per patient. Slow subscribers
// drop messages rather than block ingestion.
type Hub struct {
	logger *logging.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{logger: logger, subs: map[string]map[*subscriber]struct{}{}}
}

// Publish delivers alerts to every subscriber of the patient.
func (h *Hub) Publish(patientID string, alerts []vitals.VitalAlert) {
	if h == nil || len(alerts) == 0 {
		return
	}
	msg := StreamMessage{Type: "alerts", Alerts: alerts}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[patientID] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("alerts: dropping message for slow subscriber", "patient_id", patientID)
		}
	}
}

// Subscribers reports the number of live connections for a patient.
func (h *Hub) Subscribers(patientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[patientID])
}

func (h *Hub) subscribe(patientID string) *subscriber {
	sub := &subscriber{ch: make(chan StreamMessage, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[patientID] == nil {
		h.subs[patientID] = map[*subscriber]struct{}{}
	}
	h.subs[patientID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(patientID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[patientID], sub)
	if len(h.subs[patientID]) == 0 {
		delete(h.subs, patientID)
	}
}

// Serve upgrades the request and streams alerts for patientID until the
// client disconnects. history is sent first when non-empty.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, patientID string, history []vitals.VitalAlert) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, patientID, history)
	}).ServeHTTP(w, r)
}

func (h *Hub) serveWS(conn *websocket.Conn, patientID string, history []vitals.VitalAlert) {
	sub := h.subscribe(patientID)
	defer h.unsubscribe(patientID, sub)

	if len(history) > 0 {
		if err := h.send(conn, StreamMessage{Type: "history", Alerts: history}); err != nil {
			return
		}
	}
	h.logger.Info("alerts: stream opened", "patient_id", patientID)

	// Reader goroutine answers pings and notices disconnects.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var in struct {
				Type string `json:"type"`
			}
			if err := websocket.JSON.Receive(conn, &in); err != nil {
				return
			}
			if in.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Debug("alerts: stream closed", "patient_id", patientID)
			return
		case <-pings:
			if err := h.send(conn, StreamMessage{Type: "pong"}); err != nil {
				return
			}
		case msg := <-sub.ch:
			if err := h.send(conn, msg); err != nil {
				h.logger.Debug("alerts: stream write failed", "patient_id", patientID, "error", err)
				return
			}
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("alerts: set write deadline: %w", err)
	}
	return websocket.JSON.Send(conn, msg)
}
