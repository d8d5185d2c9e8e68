package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/resilience"
)

// Classify decides how a provider error counts toward breaker health.
func Classify(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Temporary:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Temporary:     true,
			RecordFailure: true,
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if isTemporaryHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Temporary:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Temporary:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Temporary:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Temporary:     false,
		RecordFailure: true,
	}
}

// WrapTemporaryIfNeeded marks transient provider failures with domain.ErrTemporary.
func WrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if Classify(err).Temporary {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

// Execute runs fn through executor when one is configured.
func Execute(ctx context.Context, executor *resilience.Executor, operation string, fn func(context.Context) error) error {
	var err error
	if executor != nil {
		err = executor.Execute(ctx, operation, fn, Classify)
	} else {
		err = fn(ctx)
	}
	return WrapTemporaryIfNeeded(operation, err)
}

func isTemporaryHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
