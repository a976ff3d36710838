package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedBuffer       = 16
	feedWriteTimeout = 5 * time.Second
)

// Event is one slot change pushed to /events subscribers.
type Event struct {
	Slot  string    `json:"slot"`
	Kind  string    `json:"kind"`
	Level string    `json:"level,omitempty"`
	ID    string    `json:"id,omitempty"`
	Time  time.Time `json:"time"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Feed fans slot change events out to websocket subscribers. A subscriber
// that falls feedBuffer events behind is disconnected.
type Feed struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewFeed creates an empty Feed.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Subscribers returns the number of connected subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Publish sends ev to every subscriber without blocking.
func (f *Feed) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error("failed to encode event", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		select {
		case sub.send <- data:
		default:
			f.logger.Warn("dropping slow event subscriber", "remote", sub.conn.RemoteAddr().String())
			f.removeLocked(sub)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the Feed is closed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, feedBuffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	f.logger.Debug("event subscriber connected", "remote", conn.RemoteAddr().String())

	go f.writeLoop(sub)

	// Clients send nothing; reading processes control frames and notices
	// the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	f.remove(sub)
}

func (f *Feed) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	sub.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	sub.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (f *Feed) remove(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(sub)
}

func (f *Feed) removeLocked(sub *subscriber) {
	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	close(sub.send)
}

// Close disconnects every subscriber and rejects new ones.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for sub := range f.subs {
		f.removeLocked(sub)
	}
	return nil
}
