package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/skyfence/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// Server broadcasts published snapshots to connected API consumers
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool
	closed  bool

	logger *logger.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a new websocket broadcast server. An empty origin
// list allows all origins.
func NewServer(allowedOrigins []string, logger *logger.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		clients: make(map[*client]bool),
		logger:  logger.Named("ws-server"),
	}
}

// HandleConnection upgrades an HTTP request to a websocket and serves it
// until the peer disconnects
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = true
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Debug("Websocket client connected",
		logger.String("remote_addr", r.RemoteAddr),
		logger.Int("client_count", count),
	)

	go s.writePump(c)
	s.readPump(c)
}

// Broadcast marshals v to JSON and sends it to every connected client.
// Clients whose send buffer is full are dropped rather than allowed to
// block the publisher.
func (s *Server) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast payload", logger.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Warn("Dropping slow websocket client")
			delete(s.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects all clients and rejects new connections
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
}

// readPump drains inbound messages until the peer disconnects. Consumers
// are read-only; anything they send is discarded.
func (s *Server) readPump(c *client) {
	defer s.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	// Send channel closed by Broadcast or Close.
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	c.conn.Close()
}
