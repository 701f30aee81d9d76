package router

import (
	"net/http"

	"github.com/akeren/lore-anchor-waitlist/internal/log"
)

// GetLogger returns the request-scoped logger installed by the router.
func GetLogger(ctx *RequestContext) *log.Logger {
	return log.GetLoggerInstanceFromContext(ctx.Request.Context(), nil)
}

func ErrorResult(statusCode int, message string, data any) *ServiceResult {
	return &ServiceResult{StatusCode: statusCode, Data: data, Message: message}
}

func OKResult(data any, message string) *ServiceResult {
	return ErrorResult(http.StatusOK, message, data)
}

func NotFoundResult(message string) *ServiceResult {
	return ErrorResult(http.StatusNotFound, message, nil)
}

func InternalServerErrorResult(message string) *ServiceResult {
	return ErrorResult(http.StatusInternalServerError, message, nil)
}

// PayloadTooLargeResult is the 413 answered when a body exceeds
// MAX_REQUEST_BODY_BYTES, whether caught by Content-Length or while reading.
func PayloadTooLargeResult() *ServiceResult {
	return ErrorResult(http.StatusRequestEntityTooLarge, "Request payload too large", nil)
}

func TooManyRequestsResult(data RateLimitResponse) *ServiceResult {
	return ErrorResult(http.StatusTooManyRequests, "Too Many Requests", data)
}

// JSONResult writes body as-is, for endpoints whose response shape is fixed by
// existing clients.
func JSONResult(statusCode int, body any) *ServiceResult {
	return &ServiceResult{StatusCode: statusCode, Data: body, raw: true}
}
