package httpadapter

import (
	"net/http"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

var errorStatuses = []struct {
	kind   error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrTemporary, http.StatusServiceUnavailable},
	{domain.ErrConfig, http.StatusServiceUnavailable},
}

func statusForError(err error) int {
	for _, e := range errorStatuses {
		if domain.IsKind(err, e.kind) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
