package repositories

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/catalog/internal/domain"
)

// ProductSort selects the ordering of Find results.
type ProductSort int

const (
	// SortByCreatedAtDesc orders newest first, ties broken by id.
	SortByCreatedAtDesc ProductSort = iota
	// SortByRanking orders by ranking ascending, then createdAt ascending, then id.
	SortByRanking
)

// ProductSelector is a conjunction of predicates over catalog records. Zero-valued
// fields do not constrain the result.
type ProductSelector struct {
	IDs     []string
	ShopIDs []string
	Type    domain.ProductType
	// AncestorsExactly matches records whose chain equals the slice. Nil leaves it unconstrained.
	AncestorsExactly []string
	AncestorID       string
	AncestorIDs      []string
	TagIDs           []string
	IsDeleted        *bool
	IsVisible        *bool
	Handle           string
	MetafieldKey     string
	MetafieldValue   string
	PriceMin         *decimal.Decimal
	PriceMax         *decimal.Decimal
	Text             *regexp.Regexp
	Sort             ProductSort
}

// Matches evaluates the selector against a single record.
func (s ProductSelector) Matches(p domain.Product) bool {
	if len(s.IDs) > 0 && !slices.Contains(s.IDs, p.ID) {
		return false
	}
	if len(s.ShopIDs) > 0 && !p.Shops.ContainsAny(s.ShopIDs) {
		return false
	}
	if s.Type != "" && p.Type != s.Type {
		return false
	}
	if s.AncestorsExactly != nil && !slices.Equal(s.AncestorsExactly, p.Ancestors) {
		return false
	}
	if s.AncestorID != "" && !p.HasAncestor(s.AncestorID) {
		return false
	}
	if len(s.AncestorIDs) > 0 && !slices.ContainsFunc(s.AncestorIDs, p.HasAncestor) {
		return false
	}
	if len(s.TagIDs) > 0 && !slices.ContainsFunc(s.TagIDs, func(tag string) bool { return slices.Contains(p.TagIDs, tag) }) {
		return false
	}
	if s.IsDeleted != nil && p.IsDeleted != *s.IsDeleted {
		return false
	}
	if s.IsVisible != nil && p.IsVisible != *s.IsVisible {
		return false
	}
	if s.Handle != "" && p.Handle != s.Handle {
		return false
	}
	if (s.MetafieldKey != "" || s.MetafieldValue != "") && !matchesMetafield(p.Metafields, s.MetafieldKey, s.MetafieldValue) {
		return false
	}
	if (s.PriceMin != nil || s.PriceMax != nil) && !s.matchesPrice(p.Price) {
		return false
	}
	if s.Text != nil && !s.Text.MatchString(p.Title) && !s.Text.MatchString(p.PageTitle) && !s.Text.MatchString(p.Description) {
		return false
	}
	return true
}

func (s ProductSelector) matchesPrice(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	if s.PriceMin != nil && price.LessThan(*s.PriceMin) {
		return false
	}
	if s.PriceMax != nil && price.GreaterThan(*s.PriceMax) {
		return false
	}
	return true
}

func matchesMetafield(fields []domain.Metafield, key, value string) bool {
	for _, field := range fields {
		if key != "" && field.Key != key {
			continue
		}
		if value != "" && field.Value != value {
			continue
		}
		return true
	}
	return false
}

// SortProducts orders products in place according to sortBy.
func SortProducts(products []domain.Product, sortBy ProductSort) {
	switch sortBy {
	case SortByRanking:
		sort.SliceStable(products, func(i, j int) bool {
			a, b := products[i], products[j]
			if a.Ranking != b.Ranking {
				return a.Ranking < b.Ranking
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
	default:
		sort.SliceStable(products, func(i, j int) bool {
			a, b := products[i], products[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		})
	}
}
