package routes

import (
	"github.com/gin-gonic/gin"

	"proveit/controllers"
)

func SetupPostRoutes(router *gin.RouterGroup, pc *controllers.PostController, reactionLimit gin.HandlerFunc) {
	router.GET("/feed", pc.GetFeed)

	posts := router.Group("/posts")
	{
		posts.GET("/:id/image", pc.GetImage)
		posts.POST("/:id/reactions/:type", reactionLimit, pc.AddReaction)
		posts.DELETE("/:id/reactions/:type", reactionLimit, pc.RemoveReaction)
	}
}
