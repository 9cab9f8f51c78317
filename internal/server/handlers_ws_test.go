package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(ts *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func TestWebSocket_RefusesMissingToken(t *testing.T) {
	f := newFixture()
	ts := httptest.NewServer(f.server.echo)
	defer ts.Close()

	//nolint:bodyclose // websocket.Dialer returns a nil response body on handshake failure
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.server.registry.Len(), "refused client must never be registered")
}

func TestWebSocket_RefusesUnknownToken(t *testing.T) {
	f := newFixture()
	ts := httptest.NewServer(f.server.echo)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "bogus"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.server.registry.Len())
}

func TestWebSocket_AdmitsValidToken(t *testing.T) {
	f := newFixture()
	ts := httptest.NewServer(f.server.echo)
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "good-token"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool {
		return f.server.registry.Len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocket_DeliversBroadcastToAdmittedClient(t *testing.T) {
	f := newFixture()
	ts := httptest.NewServer(f.server.echo)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.server.registry.Len() == 1
	}, time.Second, 10*time.Millisecond)

	payload := []byte(`{"ticker":"HBL","price":187.5,"updated_at":"2026-01-12T10:30:00Z"}`)
	for _, session := range f.server.registry.Snapshot() {
		require.NoError(t, session.Write(payload))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, received, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, received)
}

func TestWebSocket_RemovesSessionOnDisconnect(t *testing.T) {
	f := newFixture()
	ts := httptest.NewServer(f.server.echo)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good-token"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.server.registry.Len() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return f.server.registry.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocket_GlobalConnectionLimit(t *testing.T) {
	f := newFixture()
	f.server.limits = NewConnectionLimits(1, 10, 1000, 1000)
	ts := httptest.NewServer(f.server.echo)
	defer ts.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good-token"), nil)
	require.NoError(t, err)
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "good-token"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebSocket_PerIPConnectionLimit(t *testing.T) {
	f := newFixture()
	f.server.limits = NewConnectionLimits(100, 1, 1000, 1000)
	ts := httptest.NewServer(f.server.echo)
	defer ts.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good-token"), nil)
	require.NoError(t, err)
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "good-token"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
