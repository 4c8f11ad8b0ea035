package websocket

import (
	"log/slog"
	"net/http"

	"proveit/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedHandler upgrades to a live-feed connection. Browsers cannot set headers
// on websocket requests, so the token may also come from the "token" query
// parameter.
func FeedHandler(hub *Hub, secret string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := utils.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}

		claims, err := utils.ParseJWTToken(secret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := &Client{Conn: conn, UserID: claims.Subject}
		hub.Register(client)
		defer hub.Unregister(client)

		if err := client.SafeWriteJSON(gin.H{"type": "connected", "userId": client.UserID}); err != nil {
			return
		}

		// Clients only listen; reading drives ping/pong and detects close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("live feed connection closed", "userID", client.UserID, "error", err)
				}
				return
			}
		}
	}
}
