package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	hub "github.com/IANDYI/labour-care-service/internal/adapters/websocket"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*hub.Hub, *httptest.Server) {
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(logger.Discard())
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn, hub.ClientInfo{UserID: r.URL.Query().Get("user"), Role: r.URL.Query().Get("role")})
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, user, role string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user + "&role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesCliniciansOnly(t *testing.T) {
	h, srv := startHub(t)

	midwife := dial(t, srv, "m1", "MIDWIFE")
	admin := dial(t, srv, "a1", "ADMIN")
	tmo := dial(t, srv, "t1", "TMO")

	require.Eventually(t, func() bool { return h.ConnectedClinicianCount() == 2 }, time.Second, 10*time.Millisecond)

	sent := h.BroadcastToClinicians([]byte(`{"type":"clinical_alert"}`))
	assert.Equal(t, 2, sent)

	for _, conn := range []*websocket.Conn{midwife, admin} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"clinical_alert"}`, string(msg))
	}

	tmo.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := tmo.ReadMessage()
	assert.Error(t, err, "TMO users do not receive alerts")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h, srv := startHub(t)

	conn := dial(t, srv, "m1", "MIDWIFE")
	require.Eventually(t, func() bool { return h.ConnectedClinicianCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.ConnectedClinicianCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.BroadcastToClinicians([]byte(`{}`)))
}
