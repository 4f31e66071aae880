package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"memelend/core/events"
	"memelend/core/types"
	"memelend/observability"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

type subscriber struct {
	prefix string
	ch     chan *types.Event
}

// Hub fans published events out to websocket subscribers. Slow subscribers
// drop events rather than stall the publisher. It implements events.Emitter.
type Hub struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	dropped uint64
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	rendered := events.Render(evt)
	if rendered == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.prefix != "" && !strings.HasPrefix(rendered.Type, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- rendered:
		default:
			h.dropped++
		}
	}
}

func (h *Hub) subscribe(prefix string) *subscriber {
	sub := &subscriber{prefix: prefix, ch: make(chan *types.Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	observability.API().SubscriberOpened()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		observability.API().SubscriberClosed()
	}
	h.mu.Unlock()
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub := s.hub.subscribe(prefix)
	defer s.hub.unsubscribe(sub)

	// Reads are only needed to observe the client closing.
	ctx := conn.CloseRead(r.Context())
	if err := stream(ctx, conn, sub.ch); err != nil && websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
		s.logger.Debug("event stream ended", slog.Any("error", err))
		_ = conn.Close(websocket.StatusInternalError, "stream error")
	}
}

func stream(ctx context.Context, conn *websocket.Conn, updates <-chan *types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-updates:
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// Dropped reports events discarded because a subscriber was full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
