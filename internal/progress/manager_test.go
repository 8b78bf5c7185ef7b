package progress

import (
	"testing"

	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cat := testCatalog(t)
	store := newFakeStore()
	cache := newFakeCache()
	m := NewManager(func(actingUser string) *Engine {
		return NewEngine(actingUser, cat, store, cache, zap.NewNop(), Options{
			BatchSize: 2,
			PageSize:  2,
		})
	})
	t.Cleanup(m.Close)
	return m
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t)

	created := m.Create("sid-1", "mahan")
	if created.ActingUser() != "mahan" {
		t.Errorf("Expected acting user mahan, got %q", created.ActingUser())
	}

	got, ok := m.Get("sid-1")
	if !ok || got != created {
		t.Error("Get should return the engine created for the session")
	}
	if _, ok := m.Get("sid-unknown"); ok {
		t.Error("Get should miss an unknown session")
	}
}

func TestManager_CreateReplacesLeftoverSession(t *testing.T) {
	m := newTestManager(t)

	first := m.Create("sid-1", "mahan")
	second := m.Create("sid-1", "mahan")
	if first == second {
		t.Fatal("A repeated sign-in must build a fresh engine")
	}

	got, ok := m.Get("sid-1")
	if !ok || got != second {
		t.Error("The fresh engine should own the session ID")
	}
}

func TestManager_Remove(t *testing.T) {
	m := newTestManager(t)

	m.Create("sid-1", "mahan")
	m.Remove("sid-1")
	if _, ok := m.Get("sid-1"); ok {
		t.Error("Removed session should be gone")
	}

	// removing twice must be harmless
	m.Remove("sid-1")
}
