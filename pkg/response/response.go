package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the JSON envelope of every non-webhook answer.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK sends 200 with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// BadRequest sends 400. Payment providers treat it as "retry later".
func BadRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, msg)
}

// Unauthorized sends 401 for a failed webhook signature.
func Unauthorized(c *gin.Context, msg string) {
	fail(c, http.StatusUnauthorized, msg)
}

// Internal sends 500; msg must not carry internal detail.
func Internal(c *gin.Context, msg string) {
	fail(c, http.StatusInternalServerError, msg)
}

// Received acknowledges a provider webhook with {"received": true}.
func Received(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Status sends a bare status code with an empty JSON object, which is all LINE reads.
func Status(c *gin.Context, code int) {
	c.JSON(code, gin.H{})
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Body{Success: false, Error: msg})
}
