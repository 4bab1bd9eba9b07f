package handlers

import (
	"errors"
	"net/http"

	"delivery-backend/internal/services"
	"delivery-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindNotFound, services.KindInvalidOrExpired:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error", "code"} for a service error. Storage causes
// go to the request log only.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := services.KindOf(err)
	message := "Internal server error"
	var se *services.Error
	if errors.As(err, &se) {
		message = se.Message
	}
	c.JSON(statusFor(kind), gin.H{"error": message, "code": kind})
}

// respondBindError reports a request body that failed binding or validation.
func respondBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{
		"error": utils.ValidationMessage(err),
		"code":  services.KindValidation,
	})
}
