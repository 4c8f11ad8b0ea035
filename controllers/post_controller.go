package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"proveit/middlewares"
	"proveit/services"
)

type PostController struct {
	feed      *services.FeedService
	reactions *services.ReactionLedger
	sweeper   *services.Sweeper
	bg        *services.Background
	logger    *slog.Logger
}

func NewPostController(feed *services.FeedService, reactions *services.ReactionLedger, sweeper *services.Sweeper, bg *services.Background, logger *slog.Logger) *PostController {
	return &PostController{feed: feed, reactions: reactions, sweeper: sweeper, bg: bg, logger: logger}
}

// GetFeed lists posts for the caller. Query: scope=friends|mine, limit.
func (pc *PostController) GetFeed(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	userID := middlewares.UserID(c)
	items, err := pc.feed.Feed(c.Request.Context(), userID, c.DefaultQuery("scope", services.ScopeFriends), limit)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	sweepInBackground(c, pc.bg, pc.sweeper, userID)
	c.JSON(http.StatusOK, gin.H{"posts": items})
}

func (pc *PostController) AddReaction(c *gin.Context) {
	state, err := pc.reactions.AddReaction(c.Request.Context(), c.Param("id"), c.Param("type"), middlewares.UserID(c))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (pc *PostController) RemoveReaction(c *gin.Context) {
	state, err := pc.reactions.RemoveReaction(c.Request.Context(), c.Param("id"), c.Param("type"), middlewares.UserID(c))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetImage returns a short-lived URL for the post's proof image.
func (pc *PostController) GetImage(c *gin.Context) {
	url, err := pc.feed.ImageURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
