package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hanko-field/catalog/internal/platform/httpx"
	"github.com/hanko-field/catalog/internal/platform/requestctx"
	"github.com/hanko-field/catalog/internal/repositories"
	"github.com/hanko-field/catalog/internal/services"
)

// writeProductError maps service and storage failures onto the error envelope.
func writeProductError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrProductInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrProductPermissionDenied):
		httpx.WriteError(ctx, w, httpx.NewError("permission_denied", err.Error(), http.StatusForbidden))
		return
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("product_conflict", err.Error(), http.StatusConflict))
			return
		case repoErr.IsUnavailable():
			httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog storage unavailable", http.StatusServiceUnavailable))
			return
		}
	}

	requestctx.Logger(ctx).Error("catalog request failed", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "internal error", http.StatusInternalServerError))
}
