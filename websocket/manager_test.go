package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := NewManager(zerolog.Nop(), "")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)

	r := gin.New()
	r.GET("/ws", m.Handler(func(token string) (string, error) {
		if token == "good" {
			return "user-1", nil
		}
		return "", errors.New("bad token")
	}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return m, srv
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
}

func TestHandler_RejectsBadToken(t *testing.T) {
	_, srv := newHubServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendToUser_DeliversToConnectedUser(t *testing.T) {
	m, srv := newHubServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "good"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello Event
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)

	// Registration happens before the hub handles any later send.
	require.Eventually(t, func() bool { return m.ConnectedUsers() == 1 }, 2*time.Second, 10*time.Millisecond)

	m.SendToUser("someone-else", "notification", map[string]string{"message": "not for you"})
	m.SendToUser("user-1", "notification", map[string]string{"message": "hello"})

	var ev struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "notification", ev.Type)
	assert.Equal(t, "hello", ev.Payload["message"])
}

func TestHandler_UnregistersOnClose(t *testing.T) {
	m, srv := newHubServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "good"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.ConnectedUsers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return m.ConnectedUsers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
