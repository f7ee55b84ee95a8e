package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/catalog/internal/domain"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]+(?:-[a-z0-9_]+)*$`)

// productSchema is the persisted shape checked before insert.
type productSchema struct {
	ID                        string            `validate:"required,max=128"`
	Type                      string            `validate:"oneof=simple variant"`
	Ancestors                 []string          `validate:"dive,required"`
	ShopIDs                   []string          `validate:"min=1,dive,required"`
	Handle                    string            `validate:"omitempty,max=256,handle"`
	Title                     string            `validate:"max=512"`
	PageTitle                 string            `validate:"max=512"`
	SKU                       string            `validate:"max=128"`
	Price                     string            `validate:"omitempty,decimal"`
	Images                    []string          `validate:"dive,required"`
	Ranking                   int               `validate:"gte=0"`
	Quantity                  int               `validate:"gte=0"`
	SupportedFulfillmentTypes []string          `validate:"dive,oneof=shipping pickup digital"`
	Metafields                []metafieldSchema `validate:"dive"`
	TagIDs                    []string          `validate:"dive,required"`
	WorkflowStatus            string            `validate:"required"`
	CreatedAt                 time.Time         `validate:"required"`
	UpdatedAt                 time.Time         `validate:"required"`
}

type metafieldSchema struct {
	Key       string `validate:"required,max=128"`
	Namespace string `validate:"max=128"`
	Value     string `validate:"max=4096"`
}

// patchSchema mirrors productSchema for partial updates. Absent fields are skipped.
type patchSchema struct {
	Handle                    *string            `validate:"omitempty,max=256,handle"`
	Title                     *string            `validate:"omitempty,max=512"`
	PageTitle                 *string            `validate:"omitempty,max=512"`
	SKU                       *string            `validate:"omitempty,max=128"`
	Price                     *string            `validate:"omitempty,decimal"`
	Images                    *[]string          `validate:"omitempty,dive,required"`
	Ranking                   *int               `validate:"omitempty,gte=0"`
	Quantity                  *int               `validate:"omitempty,gte=0"`
	SupportedFulfillmentTypes *[]string          `validate:"omitempty,dive,oneof=shipping pickup digital"`
	Metafields                *[]metafieldSchema `validate:"omitempty,dive"`
	TagIDs                    *[]string          `validate:"omitempty,dive,required"`
	ShopIDs                   *[]string          `validate:"omitempty,min=1,dive,required"`
	UpdatedAt                 *time.Time         `validate:"required"`
}

type productValidator struct {
	validate *validator.Validate
}

func newProductValidator() *productValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return &productValidator{validate: v}
}

// mustRegister panics when a tag cannot be registered; schema tags would
// otherwise fail at validation time.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("product schema: register %q: %v", tag, err))
	}
}

// Full checks a complete record before insert.
func (v *productValidator) Full(p domain.Product) error {
	schema := productSchema{
		ID:                        p.ID,
		Type:                      string(p.Type),
		Ancestors:                 p.Ancestors,
		ShopIDs:                   p.Shops.IDs(),
		Handle:                    p.Handle,
		Title:                     p.Title,
		PageTitle:                 p.PageTitle,
		SKU:                       p.SKU,
		Price:                     p.Price,
		Images:                    p.Images,
		Ranking:                   p.Ranking,
		Quantity:                  p.Quantity,
		SupportedFulfillmentTypes: p.SupportedFulfillmentTypes,
		Metafields:                metafieldSchemas(p.Metafields),
		TagIDs:                    p.TagIDs,
		WorkflowStatus:            p.Workflow.Status,
		CreatedAt:                 p.CreatedAt,
		UpdatedAt:                 p.UpdatedAt,
	}
	if err := v.validate.Struct(schema); err != nil {
		return schemaError(err)
	}
	switch {
	case p.Type == domain.ProductTypeSimple && len(p.Ancestors) > 0:
		return invalidInput("product %s must not have ancestors", p.ID)
	case p.Type == domain.ProductTypeVariant && len(p.Ancestors) == 0:
		return invalidInput("variant %s requires ancestors", p.ID)
	case containsString(p.Ancestors, p.ID):
		return invalidInput("record %s cannot be its own ancestor", p.ID)
	}
	return nil
}

// Partial checks only the fields a patch writes.
func (v *productValidator) Partial(patch domain.ProductPatch) error {
	schema := patchSchema{
		Handle:                    patch.Handle,
		Title:                     patch.Title,
		PageTitle:                 patch.PageTitle,
		SKU:                       patch.SKU,
		Price:                     patch.Price,
		Images:                    patch.Images,
		Ranking:                   patch.Ranking,
		Quantity:                  patch.Quantity,
		SupportedFulfillmentTypes: patch.SupportedFulfillmentTypes,
		TagIDs:                    patch.TagIDs,
		UpdatedAt:                 patch.UpdatedAt,
	}
	if patch.Metafields != nil {
		fields := metafieldSchemas(*patch.Metafields)
		schema.Metafields = &fields
	}
	if patch.Shops != nil {
		ids := patch.Shops.IDs()
		schema.ShopIDs = &ids
	}
	if err := v.validate.Struct(schema); err != nil {
		return schemaError(err)
	}
	return nil
}

func metafieldSchemas(fields []domain.Metafield) []metafieldSchema {
	out := make([]metafieldSchema, 0, len(fields))
	for _, f := range fields {
		out = append(out, metafieldSchema{Key: f.Key, Namespace: f.Namespace, Value: f.Value})
	}
	return out
}

func schemaError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrProductInvalidInput, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrProductInvalidInput, strings.Join(parts, "; "))
}
