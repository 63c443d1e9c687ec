package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
	"github.com/sjohnston82/twitter-t3-clone/internal/metrics"
)

const (
	hubBacklog    = 64
	clientBacklog = 16
	writeTimeout  = 10 * time.Second
	pingInterval  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans newly admitted posts out to connected WebSocket clients. It
// implements domain.FeedPublisher. Slow clients are disconnected rather than
// allowed to block the write path.
type Hub struct {
	logger     *slog.Logger
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan domain.FeedItem
	clients    map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan domain.FeedItem
}

// NewHub creates a live feed hub. Call Run before accepting connections.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan domain.FeedItem, hubBacklog),
		clients:    make(map[*feedClient]struct{}),
	}
}

// PublishPost implements domain.FeedPublisher. It never blocks; if the hub
// is saturated the item is dropped for live subscribers only (the post is
// already persisted and will appear on the next feed fetch).
func (h *Hub) PublishPost(item domain.FeedItem) {
	select {
	case h.broadcast <- item:
	default:
		h.logger.Warn("live feed backlog full, dropping broadcast", "post_id", item.Post.ID)
	}
}

// Run owns the client set. It blocks until ctx is cancelled, then closes all
// connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			metrics.FeedSubscribers.Set(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.FeedSubscribers.Set(float64(len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			metrics.FeedSubscribers.Set(float64(len(h.clients)))

		case item := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- item:
				default:
					// client not keeping up
					delete(h.clients, c)
					close(c.send)
				}
			}
			metrics.FeedSubscribers.Set(float64(len(h.clients)))
		}
	}
}

func (s *Server) handleLiveFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan domain.FeedItem, clientBacklog)}
	s.hub.register <- c

	go c.writeLoop()

	// Read loop only detects disconnects; clients send nothing we care about.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	s.hub.unregister <- c
	conn.Close()
}

func (c *feedClient) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case item, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(item); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
