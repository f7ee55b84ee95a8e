package firestore

import (
	"reflect"
	"testing"
	"time"

	domain "github.com/hanko-field/catalog/internal/domain"
)

func TestDecodeShopScopeAcceptsBothForms(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want []string
	}{
		{"legacy scalar", "shop1", []string{"shop1"}},
		{"list", []any{"shop1", "shop2"}, []string{"shop1", "shop2"}},
		{"typed list", []string{"shop2"}, []string{"shop2"}},
		{"missing", nil, []string{}},
		{"mixed junk", []any{"shop1", 42, ""}, []string{"shop1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeShopScope(tc.raw).IDs()
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEncodeProductAlwaysWritesShopList(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	product := domain.Product{
		ID:         "p1",
		Type:       domain.ProductTypeSimple,
		Shops:      domain.SingleShop("shop1"),
		Metafields: []domain.Metafield{{Key: "k", Value: "v"}},
		Workflow:   domain.Workflow{Status: domain.WorkflowStatusNew},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	doc := encodeProduct(product)
	ids, ok := doc.ShopID.([]string)
	if !ok || !reflect.DeepEqual(ids, []string{"shop1"}) {
		t.Fatalf("expected list form, got %#v", doc.ShopID)
	}
	if doc.Ancestors == nil || doc.SupportedFulfillmentTypes == nil {
		t.Fatalf("expected empty arrays rather than nil for indexable fields")
	}

	back := decodeProduct("p1", doc)
	if !back.Shops.Equal(product.Shops) || back.Workflow.Status != domain.WorkflowStatusNew {
		t.Fatalf("unexpected decoded product %#v", back)
	}
	if len(back.Metafields) != 1 || back.Metafields[0].Key != "k" {
		t.Fatalf("metafields lost: %#v", back.Metafields)
	}
}
