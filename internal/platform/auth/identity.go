package auth

import (
	"context"
	"slices"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Roles recognised by the catalog.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// AllShops in a shops claim grants access to every shop.
const AllShops = "*"

// Identity is the authenticated caller extracted from a Firebase ID token.
type Identity struct {
	UID   string
	Email string
	Roles []string
	// Shops lists the shop ids the caller operates. Admins ignore it.
	Shops []string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasRole reports whether the identity carries role, ignoring case.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	return slices.ContainsFunc(i.Roles, func(r string) bool { return strings.EqualFold(r, role) })
}

// HasAnyRole reports whether the identity carries any of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, i.HasRole)
}

// OperatesShop reports whether shopID is listed in the identity's shops claim.
func (i *Identity) OperatesShop(shopID string) bool {
	if i == nil || shopID == "" {
		return false
	}
	return slices.Contains(i.Shops, AllShops) || slices.Contains(i.Shops, shopID)
}

type contextKey string

const identityContextKey contextKey = "github.com/hanko-field/catalog/internal/platform/auth/identity"

// WithIdentity stores identity on ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
