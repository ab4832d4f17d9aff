package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

func addGroupWithOutcomes(t *testing.T, f *fixture, userID string, amounts ...int64) domain.OutcomeGroup {
	t.Helper()
	ctx := context.Background()
	g := f.groups.AddGroup(ctx, userID, domain.OutcomeGroup{Name: "fixed"})
	if !g.Succeeded() {
		t.Fatalf("add group: %s", g.Error)
	}
	for _, a := range amounts {
		r := f.groups.AddGroupOutcome(ctx, userID, g.Entity.ID, domain.Outcome{
			Amount: decimal.NewFromInt(a), Description: "item", State: domain.OutcomePaid,
		})
		if !r.Succeeded() {
			t.Fatalf("add group outcome: %s", r.Error)
		}
	}
	return *g.Entity
}

func TestApplyToPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backends()[0].open(t))
	p := addPeriod(t, f, "u1", "August", date(2024, 8, 1), date(2024, 8, 31))
	g := addGroupWithOutcomes(t, f, "u1", 10, 20)

	// Prime the period's outcome list so the apply has to invalidate it.
	f.periods.ListOutcomes(ctx, "u1", p.ID)

	res := f.groups.ApplyToPeriod(ctx, "u1", p.ID, g.ID)
	if !res.Succeeded() {
		t.Fatalf("apply: %s", res.Error)
	}
	if len(*res.Entity) != 2 || res.ParentEntityID != p.ID {
		t.Fatalf("expected 2 outcomes for %s, got %+v", p.ID, res)
	}

	list := f.periods.ListOutcomes(ctx, "u1", p.ID)
	if len(*list.Entity) != 2 {
		t.Fatalf("expected applied outcomes in period list, got %d", len(*list.Entity))
	}
	for _, o := range *list.Entity {
		if o.State != domain.OutcomePending || o.Date == nil || !o.Date.Equal(date(2024, 8, 31)) {
			t.Errorf("unexpected applied outcome %+v", o)
		}
	}
}

func TestApplyToPeriod_EmptyGroup(t *testing.T) {
	f := newFixture(t, backends()[0].open(t))
	p := addPeriod(t, f, "u1", "August", date(2024, 8, 1), date(2024, 8, 31))
	g := addGroupWithOutcomes(t, f, "u1")

	res := f.groups.ApplyToPeriod(context.Background(), "u1", p.ID, g.ID)
	if res.Status != http.StatusOK || res.Entity == nil || len(*res.Entity) != 0 {
		t.Fatalf("expected 200 with empty list, got %+v", res)
	}
}

func TestApplyToPeriod_MissingPeriod(t *testing.T) {
	f := newFixture(t, backends()[0].open(t))
	g := addGroupWithOutcomes(t, f, "u1", 10)

	res := f.groups.ApplyToPeriod(context.Background(), "u1", "missing", g.ID)
	if res.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Status)
	}
}

func TestApplyToPeriod_ForeignGroup(t *testing.T) {
	f := newFixture(t, backends()[0].open(t))
	p := addPeriod(t, f, "u1", "August", date(2024, 8, 1), date(2024, 8, 31))
	g := addGroupWithOutcomes(t, f, "u2", 10)

	res := f.groups.ApplyToPeriod(context.Background(), "u1", p.ID, g.ID)
	if res.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Status)
	}
}

func TestDeleteGroup_KeepsAppliedOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backends()[0].open(t))
	p := addPeriod(t, f, "u1", "August", date(2024, 8, 1), date(2024, 8, 31))
	g := addGroupWithOutcomes(t, f, "u1", 10, 20, 30)

	f.groups.ListGroupOutcomes(ctx, "u1", g.ID)
	if r := f.groups.ApplyToPeriod(ctx, "u1", p.ID, g.ID); !r.Succeeded() {
		t.Fatalf("apply: %s", r.Error)
	}

	res := f.groups.DeleteGroup(ctx, "u1", g.ID)
	if !res.Succeeded() || res.EntityID != g.ID {
		t.Fatalf("delete: %+v", res)
	}
	if exists(t, f.store, domain.CollectionOutcomeGroups, g.ID) {
		t.Error("group still exists")
	}
	if n := count(t, f.store, domain.CollectionGroupOutcomes, domain.FieldGroupID, g.ID); n != 0 {
		t.Errorf("expected templates deleted, got %d", n)
	}
	if n := count(t, f.store, domain.CollectionOutcomes, domain.FieldPeriodID, p.ID); n != 3 {
		t.Errorf("expected applied outcomes kept, got %d", n)
	}
}

func TestGroupOutcome_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backends()[0].open(t))
	g := addGroupWithOutcomes(t, f, "u1", 10)

	list := f.groups.ListGroupOutcomes(ctx, "u1", g.ID)
	o := (*list.Entity)[0]

	upd := f.groups.UpdateGroupOutcome(ctx, "u1", g.ID, o.ID, domain.Outcome{
		Amount: decimal.NewFromInt(15), Description: "item", PeriodID: "sneaky",
	})
	if !upd.Succeeded() {
		t.Fatalf("update: %s", upd.Error)
	}
	if upd.Entity.PeriodID != "" || upd.Entity.State != domain.OutcomePaid || upd.ParentEntityID != g.ID {
		t.Errorf("unexpected update %+v", upd)
	}

	if other := f.groups.DeleteGroupOutcome(ctx, "u1", "other-group", o.ID); other.Status != http.StatusNotFound {
		t.Errorf("expected 404 for wrong group, got %d", other.Status)
	}
	if del := f.groups.DeleteGroupOutcome(ctx, "u1", g.ID, o.ID); !del.Succeeded() {
		t.Fatalf("delete: %s", del.Error)
	}
	if list := f.groups.ListGroupOutcomes(ctx, "u1", g.ID); len(*list.Entity) != 0 {
		t.Errorf("expected empty group, got %d", len(*list.Entity))
	}
}

func TestListGroups_SortedByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, backends()[0].open(t))
	f.groups.AddGroup(ctx, "u1", domain.OutcomeGroup{Name: "streaming"})
	f.groups.AddGroup(ctx, "u1", domain.OutcomeGroup{Name: "Bills"})

	if bad := f.groups.AddGroup(ctx, "u1", domain.OutcomeGroup{}); bad.Status != http.StatusBadRequest {
		t.Errorf("expected 400 for nameless group, got %d", bad.Status)
	}

	res := f.groups.ListGroups(ctx, "u1")
	list := *res.Entity
	if len(list) != 2 || list[0].Name != "Bills" {
		t.Errorf("expected Bills first, got %+v", list)
	}
}
