package middleware

import (
	"net/http"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/gin-gonic/gin"
)

// BindJSON decodes and validates the JSON body into obj. On failure it writes
// a 400 with per-field details and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		abort(c, http.StatusBadRequest, dto.HandleValidationError(err))
		return false
	}
	return true
}

// Bind picks the binding from the Content-Type (JSON, form or multipart).
func Bind(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBind(obj); err != nil {
		abort(c, http.StatusBadRequest, dto.HandleValidationError(err))
		return false
	}
	return true
}

// BindQuery validates query string parameters into obj.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		abort(c, http.StatusBadRequest, dto.HandleValidationError(err))
		return false
	}
	return true
}
