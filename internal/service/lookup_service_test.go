package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
)

func TestCategories_CRUD(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backends()[0].open(t))

	typ := domain.CategoryTypeOutcomes
	added := f.lookups.AddCategory(ctx, "u1", domain.Category{Name: "Home", Color: "#fff", Type: &typ})
	if !added.Succeeded() {
		t.Fatalf("add: %s", added.Error)
	}
	f.lookups.AddCategory(ctx, "u1", domain.Category{Name: "food"})

	found := f.lookups.FindCategoryByName(ctx, "u1", "HOME")
	if !found.Succeeded() || found.Entity.ID != added.Entity.ID {
		t.Fatalf("expected to find Home, got %+v", found)
	}
	if miss := f.lookups.FindCategoryByName(ctx, "u2", "home"); miss.Status != http.StatusNotFound {
		t.Errorf("expected 404 for other user, got %d", miss.Status)
	}

	upd := f.lookups.UpdateCategory(ctx, "u1", added.Entity.ID, domain.Category{Name: "House"})
	if !upd.Succeeded() || upd.Entity.Color != "" || upd.Entity.Type == nil {
		t.Errorf("unexpected update %+v", upd.Entity)
	}

	list := f.lookups.ListCategories(ctx, "u1")
	if names := *list.Entity; len(names) != 2 || names[0].Name != "food" {
		t.Errorf("expected [food House], got %+v", names)
	}

	if del := f.lookups.DeleteCategory(ctx, "u1", added.Entity.ID); !del.Succeeded() {
		t.Fatalf("delete: %s", del.Error)
	}
	if again := f.lookups.DeleteCategory(ctx, "u1", added.Entity.ID); again.Status != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", again.Status)
	}
}

func TestCategory_InvalidType(t *testing.T) {
	f := newFixture(t, backends()[0].open(t))

	typ := domain.CategoryType(7)
	res := f.lookups.AddCategory(context.Background(), "u1", domain.Category{Name: "x", Type: &typ})
	if res.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Status)
	}
}

func TestPaymentMethods_CRUD(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backends()[0].open(t))

	added := f.lookups.AddPaymentMethod(ctx, "u1", domain.PaymentMethod{Name: "Credit card"})
	if !added.Succeeded() {
		t.Fatalf("add: %s", added.Error)
	}
	if bad := f.lookups.AddPaymentMethod(ctx, "u1", domain.PaymentMethod{}); bad.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", bad.Status)
	}

	if found := f.lookups.FindPaymentMethodByName(ctx, "u1", "credit CARD"); !found.Succeeded() {
		t.Errorf("expected to find method, got %+v", found)
	}

	upd := f.lookups.UpdatePaymentMethod(ctx, "u1", added.Entity.ID, domain.PaymentMethod{Name: "Debit"})
	if !upd.Succeeded() || upd.Entity.Name != "Debit" || upd.Entity.UserID != "u1" {
		t.Errorf("unexpected update %+v", upd)
	}
	if other := f.lookups.UpdatePaymentMethod(ctx, "u2", added.Entity.ID, domain.PaymentMethod{Name: "x"}); other.Status != http.StatusNotFound {
		t.Errorf("expected 404 for other user, got %d", other.Status)
	}

	if del := f.lookups.DeletePaymentMethod(ctx, "u1", added.Entity.ID); !del.Succeeded() || del.EntityID != added.Entity.ID {
		t.Errorf("unexpected delete %+v", del)
	}
	if list := f.lookups.ListPaymentMethods(ctx, "u1"); len(*list.Entity) != 0 {
		t.Errorf("expected no methods, got %d", len(*list.Entity))
	}
}
