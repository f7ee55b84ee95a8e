package services

import (
	"context"
	"strings"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	domain "github.com/hanko-field/catalog/internal/domain"
)

type inputCleaner struct {
	html *bluemonday.Policy
}

var _ ProductInputCleaner = (*inputCleaner)(nil)

// NewInputCleaner returns the default cleaner. It is pure: no storage access.
func NewInputCleaner() ProductInputCleaner {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	return &inputCleaner{html: policy}
}

// CleanProductInput normalises product attributes. A missing handle is derived
// from the title when creating or when the stored record has none. A handle
// that slugs to nothing never clears CurrentHandle.
func (c *inputCleaner) CleanProductInput(_ context.Context, req CleanRequest) (ProductPatch, error) {
	patch := c.cleanCommon(req.Input)
	patch.PageTitle = cleanText(req.Input.PageTitle)
	patch.TagIDs = cleanIDList(req.Input.TagIDs)
	patch.ShouldAppearInSitemap = req.Input.ShouldAppearInSitemap

	current := strings.TrimSpace(req.CurrentHandle)
	var handle string
	if req.Input.Handle != nil {
		handle = makeHandle(*req.Input.Handle)
	}
	if handle == "" && (req.Creating || current == "") && patch.Title != nil {
		handle = makeHandle(*patch.Title)
	}
	switch {
	case handle != "":
		patch.Handle = &handle
	case req.Input.Handle != nil && req.Creating:
		patch.Handle = &handle
	}
	return patch, nil
}

// CleanVariantInput normalises variant attributes. Product-only fields are dropped.
func (c *inputCleaner) CleanVariantInput(_ context.Context, req CleanRequest) (ProductPatch, error) {
	return c.cleanCommon(req.Input), nil
}

func (c *inputCleaner) cleanCommon(in domain.ProductInput) ProductPatch {
	patch := ProductPatch{
		Title:       cleanText(in.Title),
		Vendor:      cleanText(in.Vendor),
		SKU:         trimmed(in.SKU),
		Price:       trimmed(in.Price),
		Images:      cleanIDList(in.Images),
		Ranking:     in.Ranking,
		Quantity:    in.Quantity,
		StyleID:     trimmed(in.StyleID),
		OptionID:    trimmed(in.OptionID),
		ShootStatus: trimmed(in.ShootStatus),
		IsDeleted:   in.IsDeleted,
		IsVisible:   in.IsVisible,
	}
	if in.Description != nil {
		description := strings.TrimSpace(c.html.Sanitize(*in.Description))
		patch.Description = &description
	}
	if in.SupportedFulfillmentTypes != nil {
		// Casers are stateful, so one per call.
		lower := cases.Lower(language.Und)
		types := make([]string, 0, len(*in.SupportedFulfillmentTypes))
		for _, t := range *in.SupportedFulfillmentTypes {
			t = lower.String(strings.TrimSpace(t))
			if t != "" && !containsString(types, t) {
				types = append(types, t)
			}
		}
		patch.SupportedFulfillmentTypes = &types
	}
	if in.Metafields != nil {
		fields := make([]domain.Metafield, 0, len(*in.Metafields))
		for _, field := range *in.Metafields {
			key := strings.TrimSpace(field.Key)
			if key == "" {
				continue
			}
			fields = append(fields, domain.Metafield{
				Key:       key,
				Namespace: strings.TrimSpace(field.Namespace),
				Value:     strings.TrimSpace(field.Value),
			})
		}
		patch.Metafields = &fields
	}
	return patch
}

func makeHandle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return slug.Make(value)
}

// cleanText trims, collapses inner whitespace and applies NFC normalisation.
func cleanText(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := strings.Join(strings.Fields(norm.NFC.String(*value)), " ")
	return &cleaned
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}

func cleanIDList(values *[]string) *[]string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(*values))
	for _, v := range *values {
		v = strings.TrimSpace(v)
		if v != "" && !containsString(out, v) {
			out = append(out, v)
		}
	}
	return &out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
