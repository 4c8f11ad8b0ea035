package controllers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"proveit/middlewares"
	"proveit/services"
)

// MaxProofImageSize bounds proof uploads.
const MaxProofImageSize = 10 << 20

type GoalController struct {
	goals   *services.GoalService
	proof   *services.ProofService
	sweeper *services.Sweeper
	bg      *services.Background
	logger  *slog.Logger
}

func NewGoalController(goals *services.GoalService, proof *services.ProofService, sweeper *services.Sweeper, bg *services.Background, logger *slog.Logger) *GoalController {
	return &GoalController{goals: goals, proof: proof, sweeper: sweeper, bg: bg, logger: logger}
}

func (gc *GoalController) CreateGoal(c *gin.Context) {
	var req services.CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	goal, err := gc.goals.Create(c.Request.Context(), middlewares.UserID(c), req)
	if err != nil {
		respondError(c, gc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, goal)
}

// ListGoals returns the caller's goals and kicks off a missed-goal sweep.
func (gc *GoalController) ListGoals(c *gin.Context) {
	userID := middlewares.UserID(c)
	goals, err := gc.goals.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, gc.logger, err)
		return
	}
	sweepInBackground(c, gc.bg, gc.sweeper, userID)
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

func (gc *GoalController) AvailableGoals(c *gin.Context) {
	userID := middlewares.UserID(c)
	goals, err := gc.goals.Available(c.Request.Context(), userID)
	if err != nil {
		respondError(c, gc.logger, err)
		return
	}
	sweepInBackground(c, gc.bg, gc.sweeper, userID)
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

func (gc *GoalController) DeleteGoal(c *gin.Context) {
	if err := gc.goals.Delete(c.Request.Context(), middlewares.UserID(c), c.Param("id")); err != nil {
		respondError(c, gc.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sweep runs a missed-goal sweep synchronously and returns its report.
func (gc *GoalController) Sweep(c *gin.Context) {
	report := gc.sweeper.Sweep(c.Request.Context(), middlewares.UserID(c))
	c.JSON(http.StatusOK, report)
}

// SubmitProof accepts a multipart form with an "image" file and an optional
// "caption".
func (gc *GoalController) SubmitProof(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Proof image is required"})
		return
	}
	if file.Size > MaxProofImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Image must be at most %d MB", MaxProofImageSize>>20)})
		return
	}
	body, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable image"})
		return
	}
	defer body.Close()

	result, err := gc.proof.Submit(c.Request.Context(), services.ProofSubmission{
		UserID:      middlewares.UserID(c),
		GoalID:      c.Param("id"),
		Caption:     c.PostForm("caption"),
		Image:       body,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		if result.PostID != "" {
			// The completion and the post stand; only the image is missing.
			gc.logger.Warn("proof stored without image", "postID", result.PostID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image upload failed, please retry", "retryable": true, "result": result})
			return
		}
		respondError(c, gc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
