package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_DeliversOnlyToOwner(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userID uint = 1
		if r.URL.Query().Get("user") == "2" {
			userID = 2
		}
		hub.ServeWS(w, r, userID)
	}))
	defer srv.Close()

	owner := dial(t, srv, "1")
	other := dial(t, srv, "2")

	require.Eventually(t, func() bool {
		return hub.ClientCount(1) == 1 && hub.ClientCount(2) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish(1, Event{Type: EventHistoryCreated, HistoryID: 42})

	require.NoError(t, owner.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := owner.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, EventHistoryCreated, got.Type)
	assert.Equal(t, uint(42), got.HistoryID)
	assert.NotZero(t, got.Timestamp)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "events are not delivered to other users")
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 7)
	}))
	defer srv.Close()

	conn := dial(t, srv, "7")
	require.Eventually(t, func() bool { return hub.ClientCount(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub("https://app.example")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 3)
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err, "cross-site upgrade must be refused")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, origin := range []string{"https://app.example", srv.URL} {
		conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
		require.NoError(t, err, origin)
		conn.Close()
	}
}

func TestHub_SendsKeepalivePings(t *testing.T) {
	hub := NewHub()
	hub.pingPeriod = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 5)
	}))
	defer srv.Close()

	conn := dial(t, srv, "5")
	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	// control frames are only processed while reading
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}
