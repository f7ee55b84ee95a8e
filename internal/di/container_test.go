package di

import (
	"context"
	"errors"
	"testing"

	"github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/platform/auth"
	"github.com/hanko-field/catalog/internal/platform/config"
	"github.com/hanko-field/catalog/internal/repositories/memory"
	"github.com/hanko-field/catalog/internal/services"
)

type capturePublisher struct {
	events []services.ProductEvent
}

func (p *capturePublisher) PublishProductEvent(_ context.Context, event services.ProductEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(config.Config{}, nil); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestContainerWiresProductService(t *testing.T) {
	reg := memory.NewRegistry(nil, memory.NewShopRepository(domain.Shop{ID: "shop1", Name: "Main Street"}))
	publisher := &capturePublisher{}
	closed := false
	container, err := NewContainer(config.Config{}, reg, WithEventPublisher(publisher, func(context.Context) error {
		closed = true
		return nil
	}))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	staff := &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}, Shops: []string{"shop1"}}
	ctx := auth.WithIdentity(context.Background(), staff)
	title := "Tea Cup"
	view, err := container.Products.CreateProduct(ctx, services.CreateProductCommand{
		ShopID:  "shop1",
		Product: &services.ProductInput{Title: &title},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if view.ShopID != "shop1" || view.Handle != "tea-cup" {
		t.Fatalf("unexpected view %#v", view)
	}
	if len(publisher.events) == 0 || publisher.events[0].Name != services.EventProductCreated {
		t.Fatalf("expected create event, got %#v", publisher.events)
	}

	_, err = container.Products.CreateProduct(auth.WithIdentity(context.Background(), &auth.Identity{UID: "u", Roles: []string{auth.RoleStaff}, Shops: []string{"shop9"}}), services.CreateProductCommand{
		ShopID:  "shop1",
		Product: &services.ProductInput{Title: &title},
	})
	if !errors.Is(err, services.ErrProductPermissionDenied) {
		t.Fatalf("expected permission denied for foreign shop, got %v", err)
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed {
		t.Fatalf("expected publisher closer to run")
	}
}
