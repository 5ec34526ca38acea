package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	idleWait   = 60 * time.Second // no pong for this long ends the connection
	pingEvery  = idleWait * 9 / 10
	queueSize  = 16
	maxInbound = 512
)

// subscriber is one WebSocket connection following one session.
//
// out is never closed, so a late send can never panic. Ending the
// subscription closes quit instead; the write loop then flushes whatever is
// queued, sends a close frame and closes the connection.
type subscriber struct {
	session string
	conn    *websocket.Conn
	out     chan []byte
	quit    chan struct{}
	once    sync.Once
}

func newSubscriber(sessionID string, conn *websocket.Conn) *subscriber {
	return &subscriber{
		session: sessionID,
		conn:    conn,
		out:     make(chan []byte, queueSize),
		quit:    make(chan struct{}),
	}
}

// offer queues data without blocking. It reports false when the subscriber
// has stopped or its queue is full.
func (s *subscriber) offer(data []byte) bool {
	if s.stopped() {
		return false
	}
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

func (s *subscriber) stop() { s.once.Do(func() { close(s.quit) }) }

func (s *subscriber) stopped() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *subscriber) write(kind int, data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return s.conn.WriteMessage(kind, data)
}

// writeLoop is the only writer on conn.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.out:
			if err := s.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.quit:
			if s.flush() == nil {
				s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck
			}
			return
		}
	}
}

// flush writes the messages still queued, such as a final "closed" event.
func (s *subscriber) flush() error {
	for {
		select {
		case data := <-s.out:
			if err := s.write(websocket.TextMessage, data); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// readLoop consumes control frames and returns once the peer goes away or
// the write loop closes the connection.
func (s *subscriber) readLoop() {
	extend := func(string) error { return s.conn.SetReadDeadline(time.Now().Add(idleWait)) }
	s.conn.SetReadLimit(maxInbound)
	extend("") //nolint:errcheck
	s.conn.SetPongHandler(extend)
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}
