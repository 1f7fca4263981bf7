package notifications

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmelnik7/order-payments-platform/internal/observability/metrics"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendQueueSize  = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Session is one websocket client. Reads happen on the connection goroutine;
// writes are serialized through the send queue drained by a single write
// pump, so frames from the broker consumer never interleave mid-write.
type Session struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics

	mu     sync.Mutex
	closed bool

	// orderID is only touched from the read loop.
	orderID string
}

// inboundFrame is the only client message the service recognises.
type inboundFrame struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
}

// ServeWS upgrades the request and runs the session until the socket closes.
func ServeWS(hub *Hub, logger *logging.Logger, m *metrics.PipelineMetrics) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "error", err)
			return
		}
		s := &Session{
			hub:     hub,
			conn:    conn,
			send:    make(chan []byte, sendQueueSize),
			logger:  logger,
			metrics: m,
		}
		m.SessionOpened()
		go s.writePump()
		s.readPump()
	}
}

// TrySend queues a frame without blocking. False means the session is closed
// or its queue is full; the hub treats either as a dead subscriber.
func (s *Session) TrySend(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) readPump() {
	defer s.teardown()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue // unknown frames are dropped, the session stays open
		}
		if frame.Type != "subscribe" || frame.OrderID == "" {
			continue
		}

		if s.orderID != "" {
			s.hub.Unsubscribe(s.orderID, s)
		}
		s.orderID = frame.OrderID
		s.hub.Subscribe(s.orderID, s)

		reply, _ := json.Marshal(map[string]string{
			"type":     "subscribed",
			"order_id": s.orderID,
		})
		s.TrySend(reply)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown runs once when the read loop exits for any reason: it unbinds the
// subscription, closes the send queue, and drops the connection.
func (s *Session) teardown() {
	if s.orderID != "" {
		s.hub.Unsubscribe(s.orderID, s)
	}

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
		s.metrics.SessionClosed()
	}
	s.mu.Unlock()

	s.conn.Close()
}
