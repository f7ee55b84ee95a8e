package auth

import (
	"context"
	"fmt"

	"github.com/hanko-field/catalog/internal/services"
)

// ShopPermissionChecker authorises catalog operations from the caller identity.
// Admins may do anything. Staff may create, read and update in the shops their
// token lists. Everyone else is denied.
type ShopPermissionChecker struct{}

var _ services.PermissionChecker = ShopPermissionChecker{}

// NewShopPermissionChecker returns the claim-based checker.
func NewShopPermissionChecker() ShopPermissionChecker {
	return ShopPermissionChecker{}
}

// Check implements services.PermissionChecker.
func (ShopPermissionChecker) Check(ctx context.Context, req services.PermissionRequest) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: no authenticated identity", services.ErrProductPermissionDenied)
	}
	if identity.HasRole(RoleAdmin) {
		return nil
	}
	switch req.Action {
	case services.ActionCreate, services.ActionRead, services.ActionUpdate:
	default:
		return fmt.Errorf("%w: unknown action %q", services.ErrProductPermissionDenied, req.Action)
	}
	if identity.HasRole(RoleStaff) && identity.OperatesShop(req.ShopID) {
		return nil
	}
	return fmt.Errorf("%w: %s may not %s %s in shop %s",
		services.ErrProductPermissionDenied, identity.UID, req.Action, req.Resource, req.ShopID)
}
