package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator map[string]int64

func (s stubValidator) ValidateAndExtractClaims(token string) (*auth.Claims, error) {
	id, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{UserID: id, Role: models.RoleStudent}, nil
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewHandler(hub, stubValidator{"good": 7}, zerolog.Nop()).HandleConnection)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func TestNotificationIsPushedToRecipient(t *testing.T) {
	hub, srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=good"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(7) == 1 }, time.Second, 10*time.Millisecond)

	issueID := int64(3)
	hub.PublishNotification(&models.Notification{ID: 1, UserID: 8, Message: "not yours"})
	hub.PublishNotification(&models.Notification{ID: 2, UserID: 7, IssueID: &issueID, Message: "Issue assigned"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type string              `json:"type"`
		Data models.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "notification", ev.Type)
	assert.Equal(t, int64(2), ev.Data.ID)
	assert.Equal(t, "Issue assigned", ev.Data.Message)
}

func TestHandshakeRequiresToken(t *testing.T) {
	_, srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=bad"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestClientRemovedOnDisconnect(t *testing.T) {
	hub, srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=good"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount(7) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}
