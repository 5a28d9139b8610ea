package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
	"github.com/Assamir/kiro-demo-sub001/pkg/problem"
)

// writeError maps the core error taxonomy to problem+json responses so
// callers can tell validation and state conflicts apart from missing
// references and calculation failures.
func writeError(ctx context.Context, log *slog.Logger, w http.ResponseWriter, err error, detail string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		log.WarnContext(ctx, "validation failed", "err", err)
		problem.Write(w, http.StatusBadRequest, "Validation Error", err.Error())

	case errors.Is(err, core.ErrNotFound):
		log.WarnContext(ctx, "resource not found", "err", err)
		problem.Write(w, http.StatusNotFound, "Not Found", detail)

	case errors.Is(err, core.ErrInvalidState):
		log.WarnContext(ctx, "state conflict", "err", err)
		problem.Write(w, http.StatusConflict, "State Conflict", err.Error())

	case errors.Is(err, core.ErrConflict):
		log.WarnContext(ctx, "resource conflict", "err", err)
		problem.Write(w, http.StatusConflict, "Conflict", detail)

	case errors.Is(err, core.ErrCalculation):
		log.ErrorContext(ctx, "premium calculation failed", "err", err)
		problem.Write(w, http.StatusInternalServerError, "Calculation Error", detail)

	case errors.Is(err, core.ErrUnauthorized):
		log.WarnContext(ctx, "unauthorized request", "err", err)
		problem.Write(w, http.StatusUnauthorized, "Unauthorized", detail)

	case errors.Is(err, context.DeadlineExceeded):
		log.ErrorContext(ctx, "operation timeout", "err", err)
		problem.Write(w, http.StatusGatewayTimeout, "Timeout", "Operation took too long.")

	default:
		log.ErrorContext(ctx, "internal server error", "err", err)
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", detail)
	}
}
