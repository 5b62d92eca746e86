package handlers

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse sends a standardized error response and logs at caller if needed
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorBody{Error: message})
}

// FormatErrorResponse builds an error body around baseMessage. The cause is
// exposed in Details only outside production.
func FormatErrorResponse(err error, baseMessage string, production bool) ErrorBody {
	body := ErrorBody{Error: baseMessage}
	if production {
		return body
	}
	if err != nil {
		body.Details = err.Error()
	} else {
		body.Details = "Unknown error"
	}
	return body
}
