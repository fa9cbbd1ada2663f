package utils

import (
	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func SuccessResponse(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, code int, message string, err error) {
	response := APIResponse{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(code, response)
}

// RetryableErrorResponse marks an upstream failure the client may retry,
// e.g. the inference model still warming up.
func RetryableErrorResponse(c *gin.Context, code int, message string, err error) {
	response := APIResponse{
		Success:   false,
		Message:   message,
		Retryable: true,
	}

	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(code, response)
}
