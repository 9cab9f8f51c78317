package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// ErrWriterClosed is returned by Write once the connection is dead.
var ErrWriterClosed = errors.New("client writer closed")

// ErrSendBufferFull is returned by Write when the client cannot keep up.
var ErrSendBufferFull = errors.New("client send buffer full")

// ClientWriter serializes all outbound traffic for one connection: broadcast
// payloads, keepalive pings, and the final close frame. It implements
// registry.Writer.
type ClientWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	dead        atomic.Bool
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewClientWriter(connection *websocket.Conn, clock clockwork.Clock) *ClientWriter {
	cw := &ClientWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// Write queues a payload for delivery. It never blocks: a full buffer means
// the client is too slow to keep up and is reported as a delivery failure.
func (cw *ClientWriter) Write(payload []byte) error {
	if cw.dead.Load() {
		return ErrWriterClosed
	}
	select {
	case <-cw.doneChannel:
		return ErrWriterClosed
	default:
	}

	select {
	case cw.sendChannel <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close sends a close frame with the given code and reason, then closes the
// connection. Safe to call more than once.
func (cw *ClientWriter) Close(code int, reason string) {
	cw.stopOnce.Do(func() {
		// Signal the run goroutine to exit and wait for it, so the close
		// frame below is not written concurrently with a payload.
		close(cw.doneChannel)
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(code, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

func (cw *ClientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.failed()
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.failed()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// failed marks the writer dead after a write or ping error. Closing the
// connection unblocks the handler's read pump, which removes the session
// from the registry; until then, every further Write fails fast.
func (cw *ClientWriter) failed() {
	cw.dead.Store(true)
	_ = cw.connection.Close()
}

func (cw *ClientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *ClientWriter) updateWriteDeadline() {
	deadline := cw.clock.Now().Add(writeDeadline)
	_ = cw.connection.SetWriteDeadline(deadline)
}

func (cw *ClientWriter) updateReadDeadline() {
	deadline := cw.clock.Now().Add(pongDeadline)
	_ = cw.connection.SetReadDeadline(deadline)
}
