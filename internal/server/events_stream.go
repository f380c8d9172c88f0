package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Jgorzitza/hotdash/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	streamBufferSize   = 100
	streamWriteTimeout = 10 * time.Second
)

// streamMessage is one JSON frame sent to queue stream clients
type streamMessage struct {
	Type      string           `json:"type"`
	Module    string           `json:"module,omitempty"`
	Timestamp string           `json:"timestamp"`
	Data      events.EventData `json:"data,omitempty"`
}

// QueueStreamHandler pushes queue events to websocket clients
type QueueStreamHandler struct {
	eventBus  *events.Bus
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewQueueStreamHandler creates a new queue stream handler
func NewQueueStreamHandler(eventBus *events.Bus, log zerolog.Logger) *QueueStreamHandler {
	return &QueueStreamHandler{
		eventBus:  eventBus,
		heartbeat: 30 * time.Second,
		log:       log.With().Str("component", "queue_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/queue/stream.
// The optional types query parameter is a comma separated event type filter.
func (h *QueueStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventTypes := events.AllTypes
	if filter := r.URL.Query().Get("types"); filter != "" {
		eventTypes = parseTypeFilter(filter)
		if len(eventTypes) == 0 {
			http.Error(w, "No known event types in filter", http.StatusBadRequest)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is open for every other route too
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Clients never send; CloseRead handles control frames and cancels ctx on disconnect
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, streamBufferSize)
	handler := func(event *events.Event) {
		// Non-blocking send (drop if channel full)
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	for _, eventType := range eventTypes {
		unsubscribe := h.eventBus.Subscribe(eventType, handler)
		defer unsubscribe()
	}

	h.log.Info().Int("types", len(eventTypes)).Msg("Client connected to queue stream")

	if err := h.write(ctx, conn, streamMessage{Type: "connected"}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from queue stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			msg := streamMessage{
				Type:      string(event.Type),
				Module:    event.Module,
				Timestamp: event.Timestamp.Format(time.RFC3339),
				Data:      event.Data,
			}
			if err := h.write(ctx, conn, msg); err != nil {
				return
			}

		case <-heartbeat.C:
			if err := h.write(ctx, conn, streamMessage{Type: "heartbeat"}); err != nil {
				return
			}
		}
	}
}

func (h *QueueStreamHandler) write(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		h.log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write to queue stream")
		return err
	}
	return nil
}

func parseTypeFilter(filter string) []events.EventType {
	known := make(map[events.EventType]bool, len(events.AllTypes))
	for _, t := range events.AllTypes {
		known[t] = true
	}

	var types []events.EventType
	for _, raw := range strings.Split(filter, ",") {
		t := events.EventType(strings.TrimSpace(raw))
		if known[t] {
			types = append(types, t)
		}
	}
	return types
}
