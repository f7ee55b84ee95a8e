package domain

import (
	"slices"
	"strings"
)

// ShopScopeKind records how a scope was established.
type ShopScopeKind int

const (
	// ShopScopeNone is the zero value: no shop has been assigned.
	ShopScopeNone ShopScopeKind = iota
	// ShopScopeSingle is the legacy single owner form.
	ShopScopeSingle
	// ShopScopeMulti is an explicit list of activated shops.
	ShopScopeMulti
)

// ShopScope is the set of shops a record belongs to. Storage always persists
// the normalised id list; the kind survives only for callers that care how the
// scope was built.
type ShopScope struct {
	kind ShopScopeKind
	ids  []string
}

// SingleShop builds a scope owned by exactly one shop.
func SingleShop(shopID string) ShopScope {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return ShopScope{}
	}
	return ShopScope{kind: ShopScopeSingle, ids: []string{shopID}}
}

// MultiShop builds an activated scope. Blank and duplicate ids are dropped and
// order is preserved.
func MultiShop(shopIDs ...string) ShopScope {
	ids := make([]string, 0, len(shopIDs))
	for _, id := range shopIDs {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ShopScope{}
	}
	return ShopScope{kind: ShopScopeMulti, ids: ids}
}

// Kind reports how the scope was built.
func (s ShopScope) Kind() ShopScopeKind {
	return s.kind
}

// IDs returns the shop ids in stored order.
func (s ShopScope) IDs() []string {
	return slices.Clone(s.ids)
}

// IsEmpty reports whether no shop is assigned.
func (s ShopScope) IsEmpty() bool {
	return len(s.ids) == 0
}

// Contains reports whether shopID is part of the scope.
func (s ShopScope) Contains(shopID string) bool {
	return shopID != "" && slices.Contains(s.ids, shopID)
}

// ContainsAny reports whether any of shopIDs is part of the scope.
func (s ShopScope) ContainsAny(shopIDs []string) bool {
	for _, id := range shopIDs {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the id slice.
func (s ShopScope) Clone() ShopScope {
	return ShopScope{kind: s.kind, ids: slices.Clone(s.ids)}
}

// Equal compares the id lists, ignoring kind.
func (s ShopScope) Equal(other ShopScope) bool {
	return slices.Equal(s.ids, other.ids)
}
