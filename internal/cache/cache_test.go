package cache

import (
	"context"
	"testing"
	"time"

	"budgetbook/internal/store"
	"budgetbook/internal/store/memory"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}

	// "b" is now least recently used and is evicted.
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) after overwrite = %d", v)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}

	c.Set("x", "1")
	c.Set("y", "2")
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
}

func TestLRUCache_Purge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Error("cache unusable after Purge")
	}
}

func TestPurgeOnChange(t *testing.T) {
	st := memory.New()
	c := NewLRUCache[int](10, time.Minute)
	stop := PurgeOnChange(st, c, store.TableExpenses, store.TableCategories)

	c.Set("report", 1)
	if _, err := st.Insert(context.Background(), store.TableResponsibles, store.Record{store.ColDescription: "Ann"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if c.Size() != 1 {
		t.Error("unwatched table purged the cache")
	}

	if _, err := st.Insert(context.Background(), store.TableCategories, store.Record{store.ColDescription: "Pets"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if c.Size() != 0 {
		t.Error("watched table change did not purge the cache")
	}

	stop()
	c.Set("report", 1)
	if _, err := st.Insert(context.Background(), store.TableCategories, store.Record{store.ColDescription: "Kids"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if c.Size() != 1 {
		t.Error("cache purged after unsubscribe")
	}
}

func TestManager_Cleanup(t *testing.T) {
	c := NewLRUCache[int](10, 5*time.Millisecond)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	c.Set("a", 1)
	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Size() != 0 {
		t.Error("manager did not clean expired entries")
	}
}
