package http

import (
	"errors"
	"net/http"
	"sort"

	"github.com/reliefhub/reliefhub/internal/importer"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/resource"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/serializer"
	"github.com/reliefhub/reliefhub/internal/store"
	syncer "github.com/reliefhub/reliefhub/internal/sync"
	"github.com/reliefhub/reliefhub/internal/utils"
	"github.com/reliefhub/reliefhub/models"
)

var errorStatusMap = map[error]int{
	ErrInvalidAuthorizationHeader: http.StatusUnauthorized,
	ErrInvalidCredentials:         http.StatusUnauthorized,
	ErrBadIdentifier:              http.StatusBadRequest,
	ErrUnknownFormat:              http.StatusNotFound,
	ErrMissingPeerHeader:          http.StatusBadRequest,

	utils.ErrTokenInvalid:  http.StatusUnauthorized,
	utils.ErrNoBearerToken: http.StatusUnauthorized,

	resource.ErrAuthRequired:     http.StatusUnauthorized,
	resource.ErrPermissionDenied: http.StatusForbidden,
	resource.ErrUnknownComponent: http.StatusNotFound,

	schema.ErrUnknownTable:     http.StatusNotFound,
	schema.ErrUnknownField:     http.StatusBadRequest,
	schema.ErrUnknownComponent: http.StatusNotFound,

	serializer.ErrParsingDocument:  http.StatusBadRequest,
	serializer.ErrBadValue:         http.StatusBadRequest,
	serializer.ErrUnknownTransform: http.StatusBadRequest,

	importer.ErrEmptyDocument:    http.StatusBadRequest,
	importer.ErrStrictRunAborted: http.StatusUnprocessableEntity,

	syncer.ErrUnknownPeer:     http.StatusForbidden,
	syncer.ErrPushNotAccepted: http.StatusForbidden,

	store.ErrNotFound:           http.StatusNotFound,
	store.ErrUniqueViolation:    http.StatusConflict,
	store.ErrLoginAlreadyExists: http.StatusConflict,
	store.ErrNoUserWasFound:     http.StatusNotFound,

	store.ErrBuildingSQLQuery:     http.StatusInternalServerError,
	store.ErrExecutingQuery:       http.StatusInternalServerError,
	store.ErrBeginningTransaction: http.StatusInternalServerError,
	store.ErrCommitingTransaction: http.StatusInternalServerError,
	store.ErrExecutingStatement:   http.StatusInternalServerError,
	store.ErrScanningRow:          http.StatusInternalServerError,
	store.ErrScanningRows:         http.StatusInternalServerError,
}

func statusFromError(err error) int {
	var validation *resource.ValidationError
	if errors.As(err, &validation) {
		return http.StatusUnprocessableEntity
	}
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err as the structured JSON error body. Validation
// failures carry the field messages as items.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromRequest(r)

	status := statusFromError(err)
	body := models.ErrorResponse{
		Status:  status,
		Message: err.Error(),
	}
	if status == http.StatusInternalServerError {
		// internals stay in the log, not in the response
		body.Message = http.StatusText(status)
	}

	var validation *resource.ValidationError
	if errors.As(err, &validation) {
		fields := make([]string, 0, len(validation.Fields))
		for f := range validation.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			body.Items = append(body.Items, models.ItemError{
				Kind:   models.KindValidation,
				Field:  f,
				Detail: validation.Fields[f],
			})
		}
	}

	log.Err(err).Int("status", status).Msg("request failed")
	utils.WriteJSON(w, body, status)
}
