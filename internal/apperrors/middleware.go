// Package apperrors provides standardized error handling for the auth core.
//
// This file implements error handling middleware for Gin: it converts an
// AppError surfaced anywhere in the handler chain into the stable JSON
// envelope {error, message, code, details?, timestamp}, recovers from
// panics, and logs with severity matched to the status code.
package apperrors

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/authcore/internal/logger"
)

// ErrorHandler is a middleware that handles errors consistently
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		log := logger.HTTP()

		if appErr, ok := err.Err.(*AppError); ok {
			if appErr.StatusCode >= 500 {
				log.Error().Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
			} else {
				log.Warn().Str("code", appErr.Code).Msg(appErr.Message)
			}
			c.JSON(appErr.StatusCode, stamp(appErr.ToResponse()))
			return
		}

		log.Error().Err(err.Err).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, stamp(ErrorResponse{
			Error:   ErrCodeInternalServer,
			Message: "an unexpected error occurred",
			Code:    ErrCodeInternalServer,
		}))
	}
}

// Recovery is a middleware that recovers from panics
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP().Error().Interface("panic", r).Msg("recovered from panic")
				c.JSON(http.StatusInternalServerError, stamp(ErrorResponse{
					Error:   ErrCodeInternalServer,
					Message: "an unexpected error occurred",
					Code:    ErrCodeInternalServer,
				}))
				c.Abort()
			}
		}()

		c.Next()
	}
}

// HandleError is a helper function to handle errors in handlers
func HandleError(c *gin.Context, err error) {
	if appErr, ok := err.(*AppError); ok {
		c.Error(appErr)
		c.JSON(appErr.StatusCode, stamp(appErr.ToResponse()))
		return
	}
	internalErr := InternalServer(err.Error())
	c.Error(internalErr)
	c.JSON(internalErr.StatusCode, stamp(internalErr.ToResponse()))
}

// AbortWithError is a helper to abort request with error
func AbortWithError(c *gin.Context, err *AppError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, stamp(err.ToResponse()))
}

func stamp(r ErrorResponse) ErrorResponse {
	r.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return r
}
