package core

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// failureCode maps a taxonomy sentinel to its wire error code.
func failureCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		return "USERNAME_TAKEN"
	case errors.Is(err, ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, ErrPasswordMismatch):
		return "PASSWORD_MISMATCH"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrTokenInvalid):
		return "TOKEN_INVALID"
	case errors.Is(err, ErrMalformedHeader):
		return "MALFORMED_HEADER"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrTooManyAttempts):
		return "TOO_MANY_ATTEMPTS"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}
