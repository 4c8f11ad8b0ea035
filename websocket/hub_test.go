package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proveit/models"
	"proveit/utils"
)

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	r := gin.New()
	r.GET("/ws", FeedHandler(hub, "secret", logger))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	token, err := utils.GenerateJWTToken("secret", userID, "", time.Hour, time.Now())
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])
	assert.Equal(t, userID, hello["userId"])
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDeliversToAudienceOnly(t *testing.T) {
	hub, srv := newServer(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	carol := dial(t, srv, "carol")
	waitForClients(t, hub, 3)

	post := &models.Post{ID: "p1", Type: models.PostProof, UserID: "alice", Caption: "done"}
	hub.Publish(context.Background(), models.FeedEvent{
		Type:     models.EventPostCreated,
		AuthorID: "alice",
		Audience: []string{"alice", "bob"},
		Post:     post,
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		var msg Message
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, models.EventPostCreated, msg.Type)
		require.NotNil(t, msg.Post)
		assert.Equal(t, "p1", msg.Post.ID)
	}

	require.NoError(t, carol.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var msg Message
	assert.Error(t, carol.ReadJSON(&msg), "carol is not in the audience")
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, srv := newServer(t)
	conn := dial(t, srv, "alice")
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestFeedHandlerRejectsMissingToken(t *testing.T) {
	_, srv := newServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/ws?token=bogus")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}
