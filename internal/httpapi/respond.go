package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err as a go-errors response. Sentinels are cloned so
// the shared values are never mutated.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		err = goerrors.Wrap(err, goerrors.CategoryNotFound, "record not found")
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers()).Clone()

	var known *goerrors.Error
	if errors.As(err, &known) && err != error(known) {
		// keep the detail added by fmt.Errorf wrapping
		mapped.Message = err.Error()
	}
	if mapped.Code == 0 {
		mapped.Code = statusFor(mapped.Category)
	}
	if mapped.TextCode == "" {
		mapped.TextCode = goerrors.HTTPStatusToTextCode(mapped.Code)
	}
	writeJSON(w, mapped.Code, mapped.ToErrorResponse(false, nil))
}

func statusFor(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// resultStatus maps an analytics envelope onto a status code. Degraded
// results are still 200 so dashboards render the zeroed payload.
func resultStatus(success, degraded bool) int {
	if success || degraded {
		return http.StatusOK
	}
	return http.StatusBadRequest
}
