// Package stream broadcasts PPU frames to websocket clients. Each frame is
// sent as one binary message holding the packed screen buffer; a frame equal
// to the previous one is not resent.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	"github.com/gorilla/websocket"
	"github.com/richardwooding/dotmatrix/internal/frame"
	"github.com/richardwooding/dotmatrix/internal/ppu"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 4
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024 * 8,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans frames out to connected clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	last    []byte // latest packed frame
	hash    uint64
	hasLast bool
	closed  bool

	log logrus.FieldLogger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger for client connects and disconnects.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Hub) {
		h.log = l
	}
}

// NewHub creates a hub with no clients.
func NewHub(opts ...Option) *Hub {
	h := &Hub{clients: make(map[*client]struct{})}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		h.log = l
	}
	return h
}

// Broadcast queues fb for every client. It returns false when fb is
// identical to the previous frame and nothing was sent. Clients that fall
// behind by more than a few frames are dropped.
func (h *Hub) Broadcast(fb *ppu.Framebuffer) bool {
	packed := frame.Pack(fb)
	sum := xxhash.Sum64(packed)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hasLast && sum == h.hash {
		return false
	}
	h.last, h.hash, h.hasLast = packed, sum, true

	for c := range h.clients {
		select {
		case c.send <- packed:
		default:
			h.log.WithField("remote", c.conn.RemoteAddr().String()).Warn("dropping slow client")
			h.remove(c)
		}
	}
	return true
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams frames to it,
// starting with the latest frame if there is one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.hasLast {
		c.send <- h.last
	}
	h.mu.Unlock()

	h.log.WithField("remote", conn.RemoteAddr().String()).Info("client connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages until the connection closes.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		h.remove(c)
		h.mu.Unlock()
		h.log.WithField("remote", c.conn.RemoteAddr().String()).Info("client disconnected")
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			return
		}
	}

	// The hub closed the channel.
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

// remove unregisters c. h.mu must be held.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client. Connections arriving afterwards are
// turned away.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.remove(c)
	}
}

// Run serves the hub on addr until ctx is done.
func (h *Hub) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	h.log.WithField("addr", addr).Info("streaming frames")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	h.Close()
	return srv.Shutdown(shutdownCtx)
}
