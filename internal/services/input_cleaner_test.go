package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	domain "github.com/hanko-field/catalog/internal/domain"
)

func TestCleanProductInput(t *testing.T) {
	cleaner := NewInputCleaner()
	fulfillment := []string{" Shipping", "PICKUP", "shipping", ""}
	tags := []string{"a", " a ", "", "b"}
	metafields := []domain.Metafield{{Key: " colour ", Value: " red "}, {Key: "  ", Value: "dropped"}}

	patch, err := cleaner.CleanProductInput(context.Background(), CleanRequest{
		ShopID:   "shop1",
		Creating: true,
		Input: ProductInput{
			Title:                     ptr(" Café  Mug "),
			Description:               ptr(`<p onclick="x()">Hi <script>alert(1)</script><a href="https://example.com">link</a></p>`),
			SupportedFulfillmentTypes: &fulfillment,
			TagIDs:                    &tags,
			Metafields:                &metafields,
		},
	})
	if err != nil {
		t.Fatalf("CleanProductInput: %v", err)
	}
	if *patch.Title != "Café Mug" {
		t.Fatalf("title not normalised: %q", *patch.Title)
	}
	if patch.Handle == nil || *patch.Handle != "cafe-mug" {
		t.Fatalf("expected handle from title, got %v", patch.Handle)
	}
	if d := *patch.Description; strings.Contains(d, "script") || strings.Contains(d, "onclick") || !strings.Contains(d, `rel="nofollow"`) {
		t.Fatalf("description not sanitised: %s", d)
	}
	if !reflect.DeepEqual(*patch.SupportedFulfillmentTypes, []string{"shipping", "pickup"}) {
		t.Fatalf("unexpected fulfillment types %v", *patch.SupportedFulfillmentTypes)
	}
	if !reflect.DeepEqual(*patch.TagIDs, []string{"a", "b"}) {
		t.Fatalf("unexpected tags %v", *patch.TagIDs)
	}
	if got := *patch.Metafields; len(got) != 1 || got[0].Key != "colour" || got[0].Value != "red" {
		t.Fatalf("unexpected metafields %+v", got)
	}
	if patch.Shops != nil || patch.UpdatedAt != nil {
		t.Fatalf("cleaner must not set scope or timestamps")
	}
}

func TestCleanProductInputUpdateKeepsHandleAbsent(t *testing.T) {
	patch, err := NewInputCleaner().CleanProductInput(context.Background(), CleanRequest{
		ShopID:        "shop1",
		CurrentHandle: "mug",
		Input:         ProductInput{Title: ptr("Renamed")},
	})
	if err != nil {
		t.Fatalf("CleanProductInput: %v", err)
	}
	if patch.Handle != nil {
		t.Fatalf("update must not derive a handle, got %q", *patch.Handle)
	}
}

func TestCleanProductInputUpdateUsesCurrentHandle(t *testing.T) {
	cleaner := NewInputCleaner()

	patch, err := cleaner.CleanProductInput(context.Background(), CleanRequest{
		ShopID:        "shop1",
		CurrentHandle: "mug",
		Input:         ProductInput{Handle: ptr("  ")},
	})
	if err != nil {
		t.Fatalf("CleanProductInput: %v", err)
	}
	if patch.Handle != nil {
		t.Fatalf("blank handle must not clear the stored one, got %q", *patch.Handle)
	}

	patch, err = cleaner.CleanProductInput(context.Background(), CleanRequest{
		ShopID: "shop1",
		Input:  ProductInput{Title: ptr("Tea Cup")},
	})
	if err != nil {
		t.Fatalf("CleanProductInput: %v", err)
	}
	if patch.Handle == nil || *patch.Handle != "tea-cup" {
		t.Fatalf("record without a handle should get one from the title, got %v", patch.Handle)
	}
}

func TestProductValidator(t *testing.T) {
	v := newProductValidator()
	valid := seedProduct("p1", domain.SingleShop("shop1"), testNow)
	valid.Price = "12.00"
	if err := v.Full(valid); err != nil {
		t.Fatalf("expected valid product: %v", err)
	}

	broken := []func(p *domain.Product){
		func(p *domain.Product) { p.Shops = domain.ShopScope{} },
		func(p *domain.Product) { p.Price = "1,00" },
		func(p *domain.Product) { p.Handle = "Bad Handle" },
		func(p *domain.Product) { p.Ancestors = []string{"x"} },
		func(p *domain.Product) { p.Type = domain.ProductTypeVariant },
		func(p *domain.Product) { p.SupportedFulfillmentTypes = []string{"teleport"} },
		func(p *domain.Product) { p.Ranking = -1 },
	}
	for i, mutate := range broken {
		p := valid.Clone()
		mutate(&p)
		if err := v.Full(p); !errors.Is(err, ErrProductInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}

	price := "abc"
	if err := v.Partial(domain.ProductPatch{Price: &price, UpdatedAt: &testNow}); !errors.Is(err, ErrProductInvalidInput) {
		t.Fatalf("expected partial validation failure, got %v", err)
	}
	if err := v.Partial(domain.ProductPatch{Title: ptr("ok")}); !errors.Is(err, ErrProductInvalidInput) {
		t.Fatalf("expected updatedAt to be required, got %v", err)
	}
}
