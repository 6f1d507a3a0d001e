// Package tracehub fans out cistron trace/demo events to connected
// WebSocket clients. It is intentionally decoupled from cistron.World:
// the demo binary observes the bus through ordinary subscriptions and
// pushes Event values in; the core library never imports this package.
package tracehub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one observable bus notification, shaped for a browser
// client rather than for in-process delivery.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Sender     int       `json:"sender"`
	Subscriber int       `json:"subscriber,omitempty"`
}

// Hub is a non-blocking broadcast hub. Subscribers receive events on
// buffered channels; slow subscribers miss events rather than blocking
// the publisher. Nil-safe: calling Publish on a nil *Hub is a no-op.
type Hub struct {
	mu         sync.RWMutex
	subs       map[chan Event]struct{}
	recvToSend map[<-chan Event]chan Event
}

// New creates a hub ready for use.
func New() *Hub {
	return &Hub{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to every subscriber. Safe to call on a nil
// receiver.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must call Unsubscribe to avoid leaking the channel.
func (h *Hub) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
	h.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call on an already-unsubscribed channel.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sendCh, ok := h.recvToSend[ch]
	if !ok {
		return
	}
	delete(h.subs, sendCh)
	delete(h.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a WebSocket connection and streams
// every published Event to it as JSON until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := h.Subscribe(64)
	defer h.Unsubscribe(ch)

	for e := range ch {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
}

// MarshalEvent is a convenience for callers that want the wire form
// without opening a connection (e.g. for logging or testing).
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
