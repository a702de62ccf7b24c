package api

import (
	stderrors "errors"
	"net/http"

	"tomoseq/internal/errors"

	"github.com/gin-gonic/gin"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an application error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case errors.CodeInvalidInput, errors.CodeInvalidParameter:
		return http.StatusBadRequest
	case errors.CodeDegenerateInput:
		return http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeCancelled:
		return http.StatusRequestTimeout
	case codeNotConfigured:
		return http.StatusServiceUnavailable
	case codeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

const (
	codeNotConfigured = "NOT_CONFIGURED"
	codeBodyTooLarge  = "BODY_TOO_LARGE"
)

func writeError(c *gin.Context, err error) {
	appErr := errors.FromDomain(err)
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		appErr = errors.New(codeBodyTooLarge, err.Error())
	}
	status := statusFor(appErr.Code)
	if status == http.StatusInternalServerError {
		c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: appErr.Code, Message: appErr.Error()}})
}
