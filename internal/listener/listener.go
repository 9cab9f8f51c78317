// Package listener maintains the subscription to the upstream Postgres
// change-notification channel and feeds parsed price updates into the
// broadcast loop.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"

	"github.com/pricewire/pricewire/internal/domain"
	"github.com/pricewire/pricewire/internal/metrics"
)

const (
	// keepaliveInterval bounds each wait for a notification. Silence for a
	// whole interval is not a failure by itself; the connection is pinged
	// to verify it is still alive.
	keepaliveInterval = time.Minute
	closeTimeout      = 5 * time.Second
)

// State is the listener's position in its reconnect lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateBackoff
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateBackoff:
		return "backoff"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Conn is the subset of *pgx.Conn the listener uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ConnectFunc opens a fresh upstream connection.
type ConnectFunc func(ctx context.Context) (Conn, error)

// PgxConnector returns a ConnectFunc that dials a dedicated Postgres
// connection. The listener needs its own connection because LISTEN is
// per-session state that must not be checked back into a pool.
func PgxConnector(databaseURL string) ConnectFunc {
	return func(ctx context.Context) (Conn, error) {
		return pgx.Connect(ctx, databaseURL)
	}
}

// Listener subscribes to a notification channel and republishes every
// well-formed payload onto the updates channel. It reconnects with a fixed
// delay after any upstream failure and runs for the life of the process.
type Listener struct {
	connect        ConnectFunc
	channel        string
	reconnectDelay time.Duration
	clock          clockwork.Clock
	updates        chan<- domain.PriceUpdate
	state          atomic.Int32
}

func New(connect ConnectFunc, channel string, reconnectDelay time.Duration, clock clockwork.Clock, updates chan<- domain.PriceUpdate) *Listener {
	return &Listener{
		connect:        connect,
		channel:        channel,
		reconnectDelay: reconnectDelay,
		clock:          clock,
		updates:        updates,
	}
}

// State returns the current lifecycle state. Safe for concurrent use; the
// readiness endpoint reports it.
func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
	if s == StateSubscribed {
		metrics.ListenerSubscribed.Set(1)
	} else {
		metrics.ListenerSubscribed.Set(0)
	}
}

// Run drives the connect/subscribe/backoff loop until ctx is cancelled.
// Upstream failures are never fatal: each one is logged and retried after
// the reconnect delay.
func (l *Listener) Run(ctx context.Context) {
	defer l.setState(StateShuttingDown)

	for {
		if ctx.Err() != nil {
			return
		}

		l.setState(StateConnecting)
		conn, err := l.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Upstream connection failed", "channel", l.channel, "error", err)
			metrics.ListenerReconnectsTotal.Inc()
			if !l.backoff(ctx) {
				return
			}
			continue
		}

		err = l.listen(ctx, conn)

		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		_ = conn.Close(closeCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}
		slog.Warn("Upstream subscription lost", "channel", l.channel, "error", err)
		metrics.ListenerReconnectsTotal.Inc()
		if !l.backoff(ctx) {
			return
		}
	}
}

// listen issues the LISTEN statement and blocks on notifications until the
// connection fails or ctx is cancelled.
func (l *Listener) listen(ctx context.Context, conn Conn) error {
	if _, err := conn.Exec(ctx, "listen "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("subscribe to %q: %w", l.channel, err)
	}

	l.setState(StateSubscribed)
	slog.Info("Subscribed to upstream channel", "channel", l.channel)

	for {
		waitCtx, cancel := context.WithTimeout(ctx, keepaliveInterval)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if pgconn.Timeout(err) {
				if err := conn.Ping(ctx); err != nil {
					return fmt.Errorf("keepalive ping: %w", err)
				}
				continue
			}
			return err
		}

		l.handlePayload(ctx, notification.Payload)
	}
}

// handlePayload parses one notification payload. Malformed payloads are
// logged and dropped without leaving the Subscribed state.
func (l *Listener) handlePayload(ctx context.Context, payload string) {
	var update domain.PriceUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		slog.Warn("Discarding malformed payload", "channel", l.channel, "error", err)
		metrics.MalformedPayloadsTotal.Inc()
		return
	}
	if update.Ticker == "" {
		slog.Warn("Discarding malformed payload", "channel", l.channel, "error", "missing ticker")
		metrics.MalformedPayloadsTotal.Inc()
		return
	}

	select {
	case l.updates <- update:
	case <-ctx.Done():
	}
}

// backoff waits the fixed reconnect delay. Returns false when ctx was
// cancelled during the wait.
func (l *Listener) backoff(ctx context.Context) bool {
	l.setState(StateBackoff)

	timer := l.clock.NewTimer(l.reconnectDelay)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}
