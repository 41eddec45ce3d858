package cache

import (
	"context"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("key1", "value1", 1*time.Second)
	val, ok := c.Get("key1")
	if !ok || val != "value1" {
		t.Fatalf("expected value1, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New[string]()
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("key1", "value1", 100*time.Millisecond)
	c.now = func() time.Time { return now.Add(150 * time.Millisecond) }
	if _, ok := c.Get("key1"); ok {
		t.Fatalf("expected expired key to return false")
	}
	c.Purge()
	if len(c.items) != 0 {
		t.Fatalf("expected purge to drop expired entry")
	}
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("key1", "value1", 1*time.Second)
	c.Delete("key1")
	_, ok := c.Get("key1")
	if ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[int]()
	c.Set("dashboard:a1:u1", 1, time.Second)
	c.Set("dashboard:a1:u2", 2, time.Second)
	c.Set("dashboard:a2:u3", 3, time.Second)
	c.Invalidate("dashboard:a1:")
	_, ok1 := c.Get("dashboard:a1:u1")
	_, ok2 := c.Get("dashboard:a1:u2")
	_, ok3 := c.Get("dashboard:a2:u3")
	if ok1 || ok2 {
		t.Fatalf("expected tenant a1 keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected other tenant to survive")
	}
}

func TestBytesAdapter(t *testing.T) {
	ctx := context.Background()
	b := NewBytes()
	b.Set(ctx, "dashboard:a1:u1", []byte(`{}`), time.Minute)
	if v, ok := b.Get(ctx, "dashboard:a1:u1"); !ok || string(v) != "{}" {
		t.Fatalf("unexpected get %q %v", v, ok)
	}
	b.DeletePrefix(ctx, "dashboard:a1:")
	if _, ok := b.Get(ctx, "dashboard:a1:u1"); ok {
		t.Fatalf("expected prefix delete")
	}
}
