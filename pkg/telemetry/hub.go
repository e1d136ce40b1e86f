package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	subscriberQueue = 64
	writeTimeout    = 5 * time.Second
	pingInterval    = 30 * time.Second
)

// Message types sent to stream observers.
const (
	TypeSample   = "sample"
	TypePosition = "position"
)

// Sample is one decoded and filtered channel value.
type Sample struct {
	Channel    int     `json:"channel"`
	Raw        float64 `json:"raw"`
	Filtered   float64 `json:"filtered"`
	High       []bool  `json:"high"`
	IntervalMS float64 `json:"interval_ms"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stddev"`
}

// Position is the navigation state after an action.
type Position struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Action string `json:"action"`
}

// Message is the JSON envelope written to each observer.
type Message struct {
	Type     string    `json:"type"`
	Session  string    `json:"session,omitempty"`
	Time     time.Time `json:"time"`
	Sample   *Sample   `json:"sample,omitempty"`
	Position *Position `json:"position,omitempty"`
}

type subscriber struct {
	id   uuid.UUID
	send chan []byte
}

// Hub fans telemetry out to websocket observers. Publishing never blocks: a
// subscriber whose queue is full misses the message. A nil *Hub is valid and
// drops everything.
type Hub struct {
	session  string
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[uuid.UUID]*subscriber
}

// NewHub creates a hub that tags every message with the session ID.
func NewHub(session string, metrics *Metrics) *Hub {
	return &Hub{
		session: session,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subs: make(map[uuid.UUID]*subscriber),
	}
}

// PublishSample sends a channel sample to all observers.
func (h *Hub) PublishSample(s Sample) {
	if h == nil {
		return
	}
	h.publish(Message{Type: TypeSample, Sample: &s})
}

// PublishPosition sends a navigation position to all observers.
func (h *Hub) PublishPosition(p Position) {
	if h == nil {
		return
	}
	h.publish(Message{Type: TypePosition, Position: &p})
}

// Session returns the session ID attached to messages.
func (h *Hub) Session() string {
	if h == nil {
		return ""
	}
	return h.session
}

// Subscribers returns the number of connected observers.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) publish(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.subs) == 0 {
		return
	}

	msg.Session = h.session
	msg.Time = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Telemetry: failed to encode %s message: %v", msg.Type, err)
		return
	}

	for _, s := range h.subs {
		select {
		case s.send <- data:
		default:
			h.metrics.MessageDropped()
		}
	}
}

func (h *Hub) subscribe() *subscriber {
	s := &subscriber{
		id:   uuid.New(),
		send: make(chan []byte, subscriberQueue),
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	h.metrics.SubscriberJoined()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s.id]
	delete(h.subs, s.id)
	h.mu.Unlock()
	if ok {
		h.metrics.SubscriberLeft()
	}
}

// ServeHTTP upgrades the request to a websocket and streams messages until
// the observer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Telemetry: failed to upgrade connection: %v", err)
		return
	}

	s := h.subscribe()
	log.Printf("Telemetry: observer %s connected from %s (total: %d)", s.id, r.RemoteAddr, h.Subscribers())

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Observers only listen; reading detects the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.writeLoop(conn, s, done)

	h.unsubscribe(s)
	conn.Close()
	log.Printf("Telemetry: observer %s disconnected", s.id)
}

func (h *Hub) writeLoop(conn *websocket.Conn, s *subscriber, done <-chan struct{}) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
