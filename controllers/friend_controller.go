package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"proveit/middlewares"
	"proveit/services"
)

type FriendController struct {
	friends *services.FriendService
	logger  *slog.Logger
}

func NewFriendController(friends *services.FriendService, logger *slog.Logger) *FriendController {
	return &FriendController{friends: friends, logger: logger}
}

func (fc *FriendController) AddFriend(c *gin.Context) {
	if err := fc.friends.Add(c.Request.Context(), middlewares.UserID(c), c.Param("userId")); err != nil {
		respondError(c, fc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend added"})
}

func (fc *FriendController) RemoveFriend(c *gin.Context) {
	if err := fc.friends.Remove(c.Request.Context(), middlewares.UserID(c), c.Param("userId")); err != nil {
		respondError(c, fc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend removed"})
}
