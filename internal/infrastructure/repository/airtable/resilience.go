package airtable

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/infrastructure/resilience"
)

// classifyAirtableError keeps 4xx responses other than 429 away from the
// breaker: they describe a bad row, not an unhealthy API.
func classifyAirtableError(err error) resilience.ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Ignored
	case resilience.IsCircuitOpen(err):
		return resilience.Transient
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError {
			return resilience.Transient
		}
		return resilience.Ignored
	case errors.As(err, &netErr):
		return resilience.Transient
	default:
		return resilience.Failed
	}
}

// annotate wraps err in kind, adding ErrTemporary or ErrUnauthorized when
// the response calls for it.
func annotate(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *HTTPStatusError
	switch {
	case classifyAirtableError(err).Temporary:
		err = domain.WrapError(domain.ErrTemporary, operation, err)
	case errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden):
		err = domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	return domain.WrapError(kind, operation, err)
}
