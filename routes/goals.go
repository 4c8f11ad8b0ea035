package routes

import (
	"github.com/gin-gonic/gin"

	"proveit/controllers"
)

func SetupGoalRoutes(router *gin.RouterGroup, gc *controllers.GoalController) {
	goals := router.Group("/goals")
	{
		goals.POST("", gc.CreateGoal)
		goals.GET("", gc.ListGoals)
		goals.GET("/available", gc.AvailableGoals)
		goals.POST("/sweep", gc.Sweep)
		goals.DELETE("/:id", gc.DeleteGoal)
		goals.POST("/:id/proof", gc.SubmitProof)
	}
}
