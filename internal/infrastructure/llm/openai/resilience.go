package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/infrastructure/resilience"
)

func classifyOpenAIError(err error) resilience.ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return resilience.Ignored
	case errors.Is(err, context.DeadlineExceeded), resilience.IsCircuitOpen(err):
		return resilience.Transient
	case errors.As(err, &statusErr):
		switch {
		case isTemporaryHTTPStatus(statusErr.StatusCode):
			return resilience.Transient
		case statusErr.StatusCode == http.StatusNotFound:
			// Unknown model: keep tripping its breaker so later runs skip it fast.
			return resilience.Failed
		default:
			return resilience.Ignored
		}
	case errors.As(err, &netErr):
		return resilience.Transient
	default:
		return resilience.Failed
	}
}

// wrapTemporaryIfNeeded tags err with ErrTemporary or ErrUnauthorized when
// the failure calls for it.
func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOpenAIError(err).Temporary {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	if isAuthFailure(err) {
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	return err
}

func isAuthFailure(err error) bool {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}

func isTemporaryHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
