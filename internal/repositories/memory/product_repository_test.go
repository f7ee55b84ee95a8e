package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/repositories"
)

func TestProductRepositoryScopedLookup(t *testing.T) {
	repo := NewProductRepository(domain.Product{ID: "p1", Shops: domain.MultiShop("shop1", "shop2")})

	if _, err := repo.FindByID(context.Background(), "p1", "shop2"); err != nil {
		t.Fatalf("expected product visible to shop2: %v", err)
	}
	_, err := repo.FindByID(context.Background(), "p1", "shop3")
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found for foreign shop, got %v", err)
	}
}

func TestProductRepositoryInsertIsAllOrNothing(t *testing.T) {
	repo := NewProductRepository(domain.Product{ID: "taken", Shops: domain.SingleShop("shop1")})
	err := repo.Insert(context.Background(),
		domain.Product{ID: "fresh", Shops: domain.SingleShop("shop1")},
		domain.Product{ID: "taken", Shops: domain.SingleShop("shop1")},
	)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := repo.FindByID(context.Background(), "fresh", "shop1"); err == nil {
		t.Fatalf("partial insert leaked a record")
	}
}

func TestProductRepositoryConcurrentUpdatesAreSerialised(t *testing.T) {
	repo := NewProductRepository(domain.Product{ID: "p1", Shops: domain.SingleShop("shop1")})

	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			sku := fmt.Sprintf("sku-%d", i)
			if _, err := repo.FindOneAndUpdate(context.Background(), "p1", "shop1", domain.ProductPatch{SKU: &sku}); err != nil {
				t.Errorf("update %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := repo.FindByID(context.Background(), "p1", "shop1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.SKU == "" {
		t.Fatalf("expected one writer to win")
	}
}

func TestProductRepositoryFindOrdersNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewProductRepository(
		domain.Product{ID: "old", Type: domain.ProductTypeSimple, Shops: domain.SingleShop("s"), CreatedAt: base},
		domain.Product{ID: "new", Type: domain.ProductTypeSimple, Shops: domain.SingleShop("s"), CreatedAt: base.Add(time.Hour)},
		domain.Product{ID: "v", Type: domain.ProductTypeVariant, Ancestors: []string{"old"}, Shops: domain.SingleShop("s"), CreatedAt: base},
	)

	got, err := repo.Find(context.Background(), repositories.ProductSelector{Type: domain.ProductTypeSimple, ShopIDs: []string{"s"}})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("unexpected order: %#v", got)
	}
}

func TestProductRepositoryUpdateManySkipsForeignRecords(t *testing.T) {
	repo := NewProductRepository(
		domain.Product{ID: "a", Shops: domain.SingleShop("shop1")},
		domain.Product{ID: "b", Shops: domain.SingleShop("shop2")},
	)
	hidden := false
	result, err := repo.UpdateMany(context.Background(), []string{"a", "b", "missing"}, "shop1", repositories.ProductBulkChange{
		AddTagIDs: []string{"t1"},
		IsVisible: &hidden,
	})
	if err != nil {
		t.Fatalf("update many failed: %v", err)
	}
	if result.FoundCount != 1 || result.UpdatedCount != 1 {
		t.Fatalf("unexpected result %#v", result)
	}
	got, _ := repo.FindByID(context.Background(), "a", "shop1")
	if len(got.TagIDs) != 1 || got.TagIDs[0] != "t1" {
		t.Fatalf("expected tag applied, got %v", got.TagIDs)
	}
}

func TestProductRepositoryUpdateSubtreesReachesForeignDescendants(t *testing.T) {
	repo := NewProductRepository(
		domain.Product{ID: "p", Shops: domain.MultiShop("shop1", "shop2")},
		domain.Product{ID: "v1", Ancestors: []string{"p"}, Shops: domain.MultiShop("shop2")},
		domain.Product{ID: "v2", Ancestors: []string{"p", "v1"}, Shops: domain.MultiShop("shop3")},
		domain.Product{ID: "other", Shops: domain.SingleShop("shop2")},
		domain.Product{ID: "q", Shops: domain.SingleShop("shop2")},
		domain.Product{ID: "qv", Ancestors: []string{"q"}, Shops: domain.SingleShop("shop2")},
	)
	deleted := true
	result, err := repo.UpdateSubtrees(context.Background(), []string{"p", "q"}, "shop1", repositories.ProductBulkChange{IsDeleted: &deleted})
	if err != nil {
		t.Fatalf("update subtrees failed: %v", err)
	}
	if result.UpdatedCount != 3 {
		t.Fatalf("expected root and two descendants, got %#v", result)
	}
	for _, id := range []string{"p", "v1", "v2"} {
		got, _ := repo.Find(context.Background(), repositories.ProductSelector{IDs: []string{id}})
		if len(got) != 1 || !got[0].IsDeleted {
			t.Fatalf("expected %s archived, got %#v", id, got)
		}
	}
	for _, id := range []string{"other", "q", "qv"} {
		got, _ := repo.Find(context.Background(), repositories.ProductSelector{IDs: []string{id}})
		if len(got) != 1 || got[0].IsDeleted {
			t.Fatalf("expected %s untouched, got %#v", id, got)
		}
	}
}
