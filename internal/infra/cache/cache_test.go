package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Stop()

	c.Set("incomes:p1", "value1")
	val, ok := c.Get("incomes:p1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Stop()

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Stop()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_SweeperRemovesExpired(t *testing.T) {
	c := cache.New[int](20 * time.Millisecond)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(100 * time.Millisecond)

	if n := c.Len(); n != 0 {
		t.Errorf("expected sweeper to empty the cache, got %d entries", n)
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Stop()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_StopTwice(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Stop()
	c.Stop()
}

func TestCache_SetIfFreshRefusedAfterDelete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Stop()

	gen := c.Generation()
	c.Delete("incomes:p1")
	if c.SetIfFresh("incomes:p1", "stale", gen) {
		t.Fatal("expected refill started before the delete to be refused")
	}
	if _, ok := c.Get("incomes:p1"); ok {
		t.Fatal("expected no entry")
	}

	if !c.SetIfFresh("incomes:p1", "fresh", c.Generation()) {
		t.Fatal("expected refill started after the delete to be stored")
	}
	if v, _ := c.Get("incomes:p1"); v != "fresh" {
		t.Errorf("expected 'fresh', got %q", v)
	}
}

func TestCache_SetIfFreshIgnoresOtherKeys(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Stop()

	gen := c.Generation()
	c.Delete("outcomes:p1")
	if !c.SetIfFresh("incomes:p1", "value", gen) {
		t.Error("expected a delete of another key not to block the refill")
	}
}

func TestCache_SetIfFreshRefusedAfterTombstoneSwept(t *testing.T) {
	c := cache.New[string](30 * time.Millisecond)
	defer c.Stop()

	gen := c.Generation()
	c.Delete("incomes:p1")
	time.Sleep(150 * time.Millisecond)

	if c.SetIfFresh("incomes:p1", "stale", gen) {
		t.Error("expected refill older than a swept delete to be refused")
	}
}
