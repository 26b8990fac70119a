package common

import (
	"net/http"
	"strings"
)

type SuccessResponse struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorResponse carries a machine readable Code so clients can branch on a
// rejection without parsing Message.
type ErrorResponse struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}, message string) SuccessResponse {
	return NewStatusResponse(http.StatusOK, data, message)
}

func NewStatusResponse(status int, data interface{}, message string) SuccessResponse {
	if message == "" {
		message = http.StatusText(status)
	}
	return SuccessResponse{
		Status:  status,
		Success: true,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse derives Code from the status text, e.g. 429 becomes
// "too_many_requests". Use WithCode for a domain specific one.
func NewErrorResponse(message string, data interface{}, status int) ErrorResponse {
	return ErrorResponse{
		Status:  status,
		Success: false,
		Code:    statusCode(status),
		Message: message,
		Data:    data,
	}
}

func (e ErrorResponse) WithCode(code string) ErrorResponse {
	e.Code = code
	return e
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
