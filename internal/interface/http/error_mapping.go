package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/swastha-auth/internal/application"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
	"github.com/oksasatya/swastha-auth/pkg/response"
)

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	var locked *security.LockedError
	var limited *security.RateLimitedError
	switch {
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	case errors.As(err, &locked):
		return http.StatusForbidden
	case errors.Is(err, security.ErrValidation),
		errors.Is(err, security.ErrInvalidCredentials),
		errors.Is(err, security.ErrEmailNotVerified):
		return http.StatusBadRequest
	case errors.Is(err, security.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrInvalidOrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, security.ErrDuplicateIdentity),
		errors.Is(err, security.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, application.ErrSearchDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the response envelope. Unknown errors never leak
// their text.
func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = security.ErrInternal.Error()
	}

	var details any
	var fields application.FieldErrors
	var weak *security.WeakPasswordError
	var locked *security.LockedError
	var limited *security.RateLimitedError
	switch {
	case errors.As(err, &fields):
		details = map[string]string(fields)
	case errors.As(err, &weak):
		reasons := make([]string, 0, len(weak.Reasons))
		for _, r := range weak.Reasons {
			reasons = append(reasons, r.Message())
		}
		details = gin.H{"password": reasons}
	case errors.As(err, &locked):
		details = gin.H{"lock_remaining_seconds": locked.Seconds()}
	case errors.As(err, &limited):
		secs := int(math.Ceil(limited.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		details = gin.H{"retry_after_seconds": secs}
	}
	response.Error[any](c, status, msg, details)
}
