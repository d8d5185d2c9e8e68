package httpadapter

import (
	"net/http"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrCredentialInvalid):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrBatchNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrNoRecord):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrStructuralValidation):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrCredentialCheckFailed), domain.IsKind(err, domain.ErrExtractionFailed):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
