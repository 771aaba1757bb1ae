package handlers

import (
	"errors"
	"net/http"

	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/errs"
)

// writeEngineError maps the engine's typed failures to HTTP responses,
// keeping the offending ids and legal ranges in the details payload so
// clients can render an actionable message.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		vErr  *errs.ValidationError
		aErr  *errs.InvalidAmountError
		sErr  *errs.InvalidScheduleError
		iErr  *errs.IncompleteScheduleError
		nfErr *errs.ObligationNotFoundError
		asErr *errs.ObligationAlreadySettledError
		exErr *errs.AmountExceedsRemainingError
		cmErr *errs.ConcurrentModificationError
	)
	switch {
	case errors.As(err, &vErr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", vErr.Violations)
	case errors.As(err, &aErr):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_amount", map[string]any{
			"field": aErr.Field, "amount": aErr.Amount, "max": aErr.Max,
		})
	case errors.As(err, &sErr):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_schedule", map[string]any{
			"count": sErr.Count, "reason": sErr.Reason,
		})
	case errors.As(err, &iErr):
		httpx.JSONError(w, http.StatusBadRequest, "incomplete_schedule", map[string]any{
			"missing_indexes": iErr.MissingIndexes,
		})
	case errors.As(err, &nfErr):
		httpx.JSONError(w, http.StatusNotFound, "not_found", map[string]any{
			"kind": nfErr.Kind, "id": nfErr.ID,
		})
	case errors.As(err, &asErr):
		httpx.JSONError(w, http.StatusConflict, "already_settled", map[string]any{
			"kind": asErr.Kind, "id": asErr.ID, "status": asErr.Status,
		})
	case errors.As(err, &exErr):
		httpx.JSONError(w, http.StatusBadRequest, "amount_exceeds_remaining", map[string]any{
			"kind": exErr.Kind, "id": exErr.ID, "amount": exErr.Amount, "remaining": exErr.Remaining,
		})
	case errors.As(err, &cmErr):
		httpx.JSONError(w, http.StatusConflict, "concurrent_modification", map[string]any{
			"kind": cmErr.Kind, "id": cmErr.ID,
		})
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
