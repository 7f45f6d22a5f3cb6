package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/famomatic/ytfetch/client"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

// statusFor maps client errors to HTTP status codes.
func statusFor(category client.ErrorCategory) int {
	switch category {
	case client.ErrorCategoryInvalidInput, client.ErrorCategoryInvalidArgument:
		return http.StatusBadRequest
	case client.ErrorCategoryUnavailable, client.ErrorCategoryFormatNotFound:
		return http.StatusNotFound
	case client.ErrorCategoryLoginRequired:
		return http.StatusForbidden
	case client.ErrorCategoryNoPlayableFormats:
		return http.StatusUnprocessableEntity
	case client.ErrorCategoryProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	category := client.ClassifyError(err)
	status := statusFor(category)
	evt := s.log.Debug()
	if status >= http.StatusInternalServerError {
		evt = s.log.Error()
	}
	evt.Err(err).Str("code", string(category)).Str("request_id", requestIDOf(c)).Msg("Request failed")

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	abortError(c, status, string(category), msg)
}
