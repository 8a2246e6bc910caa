package cache

import (
	"testing"
	"time"
)

func TestGetReturnsStoredValue(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("token", "abc")

	value, ok := c.Get("token")
	if !ok || value != "abc" {
		t.Errorf("Expected stored value 'abc', got %q (ok=%v)", value, ok)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := New[int](time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}
}

func TestExpiredEntryIsDropped(t *testing.T) {
	c := New[string](time.Minute)
	c.SetWithTTL("token", "abc", -time.Second)

	if _, ok := c.Get("token"); ok {
		t.Error("Expected expired entry to be dropped")
	}
}

func TestDelete(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("token", "abc")
	c.Delete("token")

	if _, ok := c.Get("token"); ok {
		t.Error("Expected deleted entry to be gone")
	}
}

func TestSetOverwrites(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("token", "old")
	c.Set("token", "new")

	if value, _ := c.Get("token"); value != "new" {
		t.Errorf("Expected overwritten value 'new', got %q", value)
	}
}
