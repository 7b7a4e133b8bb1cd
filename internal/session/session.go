// Package session adapts browser WebSocket connections to the hub.
//
// Each connection gets one read loop (the handler goroutine) that applies
// updates in wire order, and one writer goroutine that drains a bounded queue
// so hub fan-out never blocks on a socket.
package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"psnrelay/internal/hub"
	"psnrelay/internal/logging"
	"psnrelay/internal/relay"
	"psnrelay/internal/tracker"
)

// Options tunes per-connection behaviour.
type Options struct {
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	QueueSize       int
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 4096
	}
	return o
}

// Registry is the part of the hub a session needs.
type Registry interface {
	Register(hub.Session) error
	Unregister(hub.Session)
}

// Updater applies a validated browser update.
type Updater interface {
	ApplyClientUpdate(origin hub.Session, st tracker.State) error
}

// Handler upgrades HTTP requests on /ws and runs the session until either
// side closes it.
type Handler struct {
	registry Registry
	updater  Updater
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds a WebSocket handler.
func NewHandler(registry Registry, updater Updater, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		updater:  updater,
		opts:     opts.withDefaults(),
		logger:   logging.NewComponentLogger(logger, "session"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The UI is reached by IP or hostname on the stage network; any origin is accepted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.logger.Debug("websocket upgrade failed",
			logging.String(logging.FieldRemoteAddr, r.RemoteAddr),
			logging.Error(err),
		)
		return
	}

	s := newSession(conn, h.opts)
	ctx := logging.WithSessionID(r.Context(), s.id)
	s.logger = logging.WithContext(ctx, h.logger).With(logging.String(logging.FieldRemoteAddr, r.RemoteAddr))

	go s.writeLoop()
	if err := h.registry.Register(s); err != nil {
		s.Close(hub.CloseGoingAway)
		<-s.writerDone
		return
	}
	s.logger.Info("client connected")

	s.readLoop(h.updater)

	h.registry.Unregister(s)
	s.terminate(nil)
	<-s.writerDone
	s.logger.Info("client disconnected", logging.String("reason", s.reasonText()))
}

type closeFrame struct {
	code int
	text string
}

func frameFor(reason hub.CloseReason) *closeFrame {
	switch reason {
	case hub.CloseGoingAway:
		return &closeFrame{code: websocket.CloseGoingAway, text: "server shutdown"}
	case hub.CloseBackpressure:
		return &closeFrame{code: websocket.CloseTryAgainLater, text: "client too slow"}
	default:
		return &closeFrame{code: websocket.CloseInternalServerErr, text: "internal error"}
	}
}

// Session is one connected browser.
type Session struct {
	id     string
	conn   *websocket.Conn
	opts   Options
	logger *slog.Logger

	queue      chan []byte
	done       chan struct{}
	writerDone chan struct{}

	closeOnce sync.Once
	frame     *closeFrame
	reason    string
}

func newSession(conn *websocket.Conn, opts Options) *Session {
	return &Session{
		id:         uuid.NewString(),
		conn:       conn,
		opts:       opts,
		logger:     logging.NewNop(),
		queue:      make(chan []byte, opts.QueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Enqueue queues msg for the writer. It returns false only when the queue is
// full. Frames for a session that is already closing are dropped.
func (s *Session) Enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

// Close asks the writer to send a close frame for reason and drop the connection.
func (s *Session) Close(reason hub.CloseReason) {
	s.terminate(frameFor(reason))
}

func (s *Session) terminate(frame *closeFrame) {
	s.closeOnce.Do(func() {
		s.frame = frame
		if frame != nil {
			s.reason = frame.text
		} else {
			s.reason = "peer closed"
		}
		close(s.done)
	})
}

func (s *Session) reasonText() string {
	select {
	case <-s.done:
		return s.reason
	default:
		return ""
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	defer s.conn.Close()

	var ping <-chan time.Time
	if s.opts.PingInterval > 0 {
		ticker := time.NewTicker(s.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("websocket write failed", logging.Error(err))
				s.terminate(frameFor(hub.CloseError))
				return
			}
		case <-ping:
			deadline := time.Now().Add(s.opts.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("websocket ping failed", logging.Error(err))
				s.terminate(frameFor(hub.CloseError))
				return
			}
		case <-s.done:
			if s.frame != nil {
				deadline := time.Now().Add(s.opts.WriteTimeout)
				payload := websocket.FormatCloseMessage(s.frame.code, s.frame.text)
				_ = s.conn.WriteControl(websocket.CloseMessage, payload, deadline)
			}
			return
		}
	}
}

func (s *Session) readLoop(updater Updater) {
	s.conn.SetReadLimit(s.opts.MaxMessageBytes)
	if s.opts.PingInterval > 0 {
		wait := 2 * s.opts.PingInterval
		_ = s.conn.SetReadDeadline(time.Now().Add(wait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !s.closing() {
				logging.WarnWithContext(s.logger, "websocket read failed", "ws_read_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "client dropped without a close handshake"),
					logging.String(logging.FieldImpact, "client stops receiving roster updates until it reconnects"),
				)
			}
			return
		}
		if kind != websocket.TextMessage {
			s.reply(errors.New("binary messages are not supported"))
			continue
		}
		st, err := relay.DecodeUpdate(data)
		if err == nil {
			err = updater.ApplyClientUpdate(s, st)
		}
		if err != nil {
			s.logger.Debug("client update rejected", logging.Error(err))
			s.reply(err)
		}
	}
}

func (s *Session) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ErrorMessage is sent to a client whose message was rejected.
type ErrorMessage struct {
	Error string `json:"error"`
}

func (s *Session) reply(err error) {
	payload, marshalErr := json.Marshal(ErrorMessage{Error: err.Error()})
	if marshalErr != nil {
		return
	}
	if !s.Enqueue(payload) {
		s.logger.Debug("error reply dropped, queue full")
	}
}
