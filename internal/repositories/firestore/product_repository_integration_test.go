//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	domain "github.com/hanko-field/catalog/internal/domain"
	pconfig "github.com/hanko-field/catalog/internal/platform/config"
	pfirestore "github.com/hanko-field/catalog/internal/platform/firestore"
	"github.com/hanko-field/catalog/internal/repositories"
	repofirestore "github.com/hanko-field/catalog/internal/repositories/firestore"
)

func newEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "catalog-test", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func TestProductRepositoryAgainstEmulator(t *testing.T) {
	provider := newEmulatorProvider(t)
	collection := "products_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	repo, err := repofirestore.NewProductRepository(provider, collection)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	product := domain.Product{ID: "p1", Type: domain.ProductTypeSimple, Shops: domain.MultiShop("shop1", "shop2"), Title: "Mug", CreatedAt: now, UpdatedAt: now}
	variant := domain.Product{ID: "v1", Type: domain.ProductTypeVariant, Ancestors: []string{"p1"}, Shops: domain.MultiShop("shop1", "shop2"), CreatedAt: now, UpdatedAt: now}
	if err := repo.Insert(ctx, product, variant); err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = repo.Insert(ctx, product)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict on duplicate insert, got %v", err)
	}

	if _, err := repo.FindByID(ctx, "p1", "shop3"); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected scoped not found, got %v", err)
	}

	title := "Large Mug"
	updated, err := repo.FindOneAndUpdate(ctx, "p1", "shop2", domain.ProductPatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("expected post-update state, got %q", updated.Title)
	}

	variants, err := repo.Find(ctx, repositories.ProductSelector{Type: domain.ProductTypeVariant, AncestorsExactly: []string{"p1"}, ShopIDs: []string{"shop1"}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(variants) != 1 || variants[0].ID != "v1" {
		t.Fatalf("unexpected variants %#v", variants)
	}

	deleted := true
	result, err := repo.UpdateMany(ctx, []string{"p1", "v1"}, "shop1", repositories.ProductBulkChange{IsDeleted: &deleted, UpdatedAt: now})
	if err != nil {
		t.Fatalf("update many: %v", err)
	}
	if result.UpdatedCount != 2 {
		t.Fatalf("expected 2 updates, got %#v", result)
	}
}

func TestProductRepositoryUpdateSubtreesAgainstEmulator(t *testing.T) {
	provider := newEmulatorProvider(t)
	collection := "subtrees_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	repo, err := repofirestore.NewProductRepository(provider, collection)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	records := []domain.Product{
		{ID: "p1", Type: domain.ProductTypeSimple, Shops: domain.MultiShop("shop1", "shop2"), CreatedAt: now, UpdatedAt: now},
		{ID: "v1", Type: domain.ProductTypeVariant, Ancestors: []string{"p1"}, Shops: domain.MultiShop("shop2"), CreatedAt: now, UpdatedAt: now},
		{ID: "v2", Type: domain.ProductTypeVariant, Ancestors: []string{"p1", "v1"}, Shops: domain.MultiShop("shop3"), CreatedAt: now, UpdatedAt: now},
	}
	if err := repo.Insert(ctx, records...); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted := true
	result, err := repo.UpdateSubtrees(ctx, []string{"p1"}, "shop1", repositories.ProductBulkChange{IsDeleted: &deleted, UpdatedAt: now})
	if err != nil {
		t.Fatalf("update subtrees: %v", err)
	}
	if result.UpdatedCount != 3 {
		t.Fatalf("expected root and both descendants, got %#v", result)
	}
	archived, err := repo.Find(ctx, repositories.ProductSelector{IDs: []string{"p1", "v1", "v2"}, IsDeleted: &deleted})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(archived) != 3 {
		t.Fatalf("expected every record archived, got %#v", archived)
	}
}
