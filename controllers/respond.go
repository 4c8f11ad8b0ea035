package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"proveit/middlewares"
	"proveit/services"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyCompletedToday), errors.Is(err, services.ErrPostExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrPersistence), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"userID", middlewares.UserID(c),
			"error", err)
		c.JSON(status, gin.H{"error": "Service temporarily unavailable, please retry", "retryable": status == http.StatusServiceUnavailable})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// sweepInBackground starts a sweep for userID unless one is already running.
func sweepInBackground(c *gin.Context, bg *services.Background, sweeper *services.Sweeper, userID string) {
	bg.Go(c.Request.Context(), "sweep:"+userID, func(ctx context.Context) error {
		sweeper.Sweep(ctx, userID)
		return nil
	})
}
