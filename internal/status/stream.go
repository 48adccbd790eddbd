package status

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// backoffBase is the first reconnect delay. It doubles on each
	// consecutive failure up to backoffMax and resets on success.
	backoffBase = time.Second
	backoffMax  = 30 * time.Second

	handshakeTimeout = 10 * time.Second
)

// wsConn is the subset of *websocket.Conn the stream uses.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// dialFunc opens one WebSocket connection.
type dialFunc func(url string) (wsConn, error)

// timerFunc schedules f after d. Stand-in for time.AfterFunc.
type timerFunc func(d time.Duration, f func()) *time.Timer

// StreamConn maintains a self-reconnecting subscription to one
// backend's event stream. Retries are unbounded with capped,
// per-connection backoff; Dispose is the only way to end them.
type StreamConn struct {
	url string

	onMessage   func([]byte)
	onConnected func(bool)

	mu       sync.Mutex
	disposed bool
	conn     wsConn
	delay    time.Duration
	timer    *time.Timer

	dial  dialFunc
	after timerFunc
}

// NewStreamConn opens a subscription to url and begins dispatching.
// onMessage receives each raw frame; onConnected fires on connectivity
// transitions. Neither fires once Dispose has run.
func NewStreamConn(url string, onMessage func([]byte), onConnected func(bool)) *StreamConn {
	s := newStreamConn(url, onMessage, onConnected, gorillaDial, time.AfterFunc)
	go s.connect()
	return s
}

// newStreamConn wires explicit dial and timer hooks; starting the
// first connect is the caller's responsibility.
func newStreamConn(url string, onMessage func([]byte), onConnected func(bool), dial dialFunc, after timerFunc) *StreamConn {
	return &StreamConn{
		url:         url,
		onMessage:   onMessage,
		onConnected: onConnected,
		delay:       backoffBase,
		dial:        dial,
		after:       after,
	}
}

func gorillaDial(url string) (wsConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// connect attempts to open the stream, scheduling a backed-off retry
// on failure.
func (s *StreamConn) connect() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	dial, url := s.dial, s.url
	s.mu.Unlock()

	conn, err := dial(url)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		// Disposed while the dial was mid-flight
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		delay := s.nextDelayLocked()
		s.mu.Unlock()
		log.Debug().Err(err).Str("url", url).Dur("retry_in", delay).Msg("event stream connect failed")
		return
	}

	s.conn = conn
	s.delay = backoffBase
	s.mu.Unlock()

	log.Debug().Str("url", url).Msg("event stream connected")
	s.dispatchConnected(true)

	go s.readLoop(conn)
}

// nextDelayLocked schedules the next reconnect and advances the
// backoff. Caller holds mu.
func (s *StreamConn) nextDelayLocked() time.Duration {
	delay := s.delay
	s.delay *= 2
	if s.delay > backoffMax {
		s.delay = backoffMax
	}
	s.timer = s.after(delay, s.connect)
	return delay
}

// readLoop dispatches frames until the transport fails, then schedules
// a reconnect.
func (s *StreamConn) readLoop(conn wsConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.dispatchMessage(data)
	}

	conn.Close()

	s.mu.Lock()
	if s.disposed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	delay := s.nextDelayLocked()
	s.mu.Unlock()

	log.Debug().Str("url", s.url).Dur("retry_in", delay).Msg("event stream lost, reconnecting")
	s.dispatchConnected(false)
}

// dispatchMessage forwards one frame unless the stream was disposed.
func (s *StreamConn) dispatchMessage(data []byte) {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed || s.onMessage == nil {
		return
	}
	s.onMessage(data)
}

// dispatchConnected forwards a connectivity transition unless the
// stream was disposed.
func (s *StreamConn) dispatchConnected(up bool) {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed || s.onConnected == nil {
		return
	}
	s.onConnected(up)
}

// Dispose cancels any pending reconnect timer and closes the live
// transport. Pending reconnects and undelivered frames are dropped.
func (s *StreamConn) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
