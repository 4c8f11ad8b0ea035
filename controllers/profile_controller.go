package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"proveit/middlewares"
	"proveit/services"
)

type ProfileController struct {
	users  *services.UserService
	logger *slog.Logger
}

func NewProfileController(users *services.UserService, logger *slog.Logger) *ProfileController {
	return &ProfileController{users: users, logger: logger}
}

type ensureProfileRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	TimeZone    string `json:"timeZone"`
}

// EnsureProfile creates the caller's user document on first sign-in.
func (pc *ProfileController) EnsureProfile(c *gin.Context) {
	var req ensureProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	user, err := pc.users.Ensure(c.Request.Context(), services.EnsureRequest{
		UserID:      middlewares.UserID(c),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		TimeZone:    req.TimeZone,
	})
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (pc *ProfileController) GetProfile(c *gin.Context) {
	user, err := pc.users.Get(c.Request.Context(), middlewares.UserID(c))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
