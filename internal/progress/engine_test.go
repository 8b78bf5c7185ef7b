package progress

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mahan-dev/course-tracker/internal/catalog"
	"github.com/mahan-dev/course-tracker/internal/domain"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/driver"
)

type fakeStore struct {
	mu   sync.Mutex
	docs map[string]bool

	failAll     bool
	setErr      error
	blockPrefix string
	release     chan struct{}
	started     chan string
	setCalls    chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     make(map[string]bool),
		setCalls: make(chan string, 16),
	}
}

func (s *fakeStore) GetDocument(ctx context.Context, key string) (driver.DocumentSnapshot, error) {
	if s.started != nil {
		select {
		case s.started <- key:
		default:
		}
	}
	if s.blockPrefix != "" && strings.HasPrefix(key, s.blockPrefix) {
		select {
		case <-s.release:
		case <-ctx.Done():
			return driver.DocumentSnapshot{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return driver.DocumentSnapshot{}, errors.New("store unreachable")
	}
	done, ok := s.docs[key]
	return driver.DocumentSnapshot{Exists: ok, Done: done}, nil
}

func (s *fakeStore) SetDocument(ctx context.Context, key string, done bool) error {
	s.mu.Lock()
	err := s.setErr
	if err == nil {
		s.docs[key] = done
	}
	s.mu.Unlock()
	select {
	case s.setCalls <- key:
	default:
	}
	return err
}

func (s *fakeStore) Subscribe(ctx context.Context, key string, fn func(driver.DocumentSnapshot)) (driver.Unsubscribe, error) {
	return func() {}, nil
}

func (s *fakeStore) Ping() error { return nil }

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) GetValue(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) SetValue(ctx context.Context, key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

func (c *fakeCache) Ping() error { return nil }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	raw := `
course: Test Course
lessons:
  - {title: "A", date: "2026-01-05", day: "Monday", tag: "core"}
  - {title: "B", date: "2026-01-07", day: "Wednesday", tag: "core"}
  - {title: "C", date: "2026-01-09", day: "Friday", tag: "extra"}
`
	cat, err := catalog.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to build test catalog: %v", err)
	}
	return cat
}

func newTestEngine(cat *catalog.Catalog, store driver.DocumentStore, cache driver.FallbackCache) *Engine {
	return NewEngine("mahan", cat, store, cache, zap.NewNop(), Options{
		BatchSize:  2,
		BatchDelay: 0,
		PageSize:   2,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestLoadProgress_NoDocumentsMeansAllNotDone(t *testing.T) {
	cat := testCatalog(t)
	engine := newTestEngine(cat, newFakeStore(), newFakeCache())
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	state := engine.Snapshot()
	if state.Loading {
		t.Error("State should not be loading after a completed load")
	}
	if len(state.Entries) != cat.Len() {
		t.Fatalf("Expected %d entries, got %d", cat.Len(), len(state.Entries))
	}
	for _, title := range cat.Titles() {
		if done, ok := state.Entries[title]; !ok {
			t.Errorf("Lesson %q missing from entries", title)
		} else if done {
			t.Errorf("Lesson %q should default to not done", title)
		}
	}
	if state.Percent != 0 {
		t.Errorf("Expected percent 0, got %d", state.Percent)
	}
}

func TestLoadProgress_PercentRounding(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore()
	store.docs["mahan_A"] = true
	engine := newTestEngine(cat, store, newFakeCache())
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := engine.Snapshot().Percent; got != 33 {
		t.Errorf("Expected percent 33 after one of three, got %d", got)
	}

	if err := engine.Toggle(context.Background(), "mahan", "B"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	state := engine.Snapshot()
	if got := state.Percent; got != 67 {
		t.Errorf("Expected percent 67 after two of three, got %d", got)
	}
	want := map[string]bool{"A": true, "B": true, "C": false}
	for title, done := range want {
		if state.Entries[title] != done {
			t.Errorf("Lesson %q: expected done=%v, got %v", title, done, state.Entries[title])
		}
	}
}

func TestToggle_TwiceRestoresOriginalState(t *testing.T) {
	cat := testCatalog(t)
	engine := newTestEngine(cat, newFakeStore(), newFakeCache())
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	before := engine.Snapshot()

	for i := 0; i < 2; i++ {
		if err := engine.Toggle(context.Background(), "mahan", "A"); err != nil {
			t.Fatalf("Toggle %d failed: %v", i, err)
		}
	}

	after := engine.Snapshot()
	if after.Entries["A"] != before.Entries["A"] {
		t.Errorf("Double toggle should restore A to %v, got %v", before.Entries["A"], after.Entries["A"])
	}
	if after.Percent != before.Percent {
		t.Errorf("Double toggle should restore percent %d, got %d", before.Percent, after.Percent)
	}
}

func TestToggle_PartnerViewIsReadOnly(t *testing.T) {
	cat := testCatalog(t)
	engine := newTestEngine(cat, newFakeStore(), newFakeCache())
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "jojo"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	before := engine.Snapshot()

	err := engine.Toggle(context.Background(), "mahan", "A")
	if !errors.Is(err, domain.ErrReadOnlyView) {
		t.Fatalf("Expected ErrReadOnlyView, got %v", err)
	}
	after := engine.Snapshot()
	if after.Entries["A"] != before.Entries["A"] || after.Percent != before.Percent {
		t.Error("Rejected toggle must not mutate state")
	}
}

func TestToggle_UnknownLesson(t *testing.T) {
	cat := testCatalog(t)
	engine := newTestEngine(cat, newFakeStore(), newFakeCache())
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := engine.Toggle(context.Background(), "mahan", "Z"); !errors.Is(err, domain.ErrUnknownLesson) {
		t.Fatalf("Expected ErrUnknownLesson, got %v", err)
	}
}

func TestToggle_RemoteWriteFailureKeepsOptimisticState(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore()
	store.setErr = errors.New("write refused")
	cache := newFakeCache()
	engine := newTestEngine(cat, store, cache)
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := engine.Toggle(context.Background(), "mahan", "A"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case <-store.setCalls:
	case <-time.After(2 * time.Second):
		t.Fatal("Remote write was never attempted")
	}

	state := engine.Snapshot()
	if !state.Entries["A"] {
		t.Error("Optimistic state must survive a failed remote write")
	}

	raw, ok := cache.data[CacheKey("mahan")]
	if !ok {
		t.Fatal("Toggle should persist the map to the fallback cache")
	}
	var cached map[string]bool
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("Fallback cache holds invalid JSON: %v", err)
	}
	if !cached["A"] {
		t.Error("Fallback cache should hold the optimistic value")
	}
}

func TestLoadProgress_StoreUnreachableFallsBackToCache(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore()
	store.failAll = true
	cache := newFakeCache()
	cache.data[CacheKey("mahan")] = `{"A":true}`
	engine := newTestEngine(cat, store, cache)
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	state := engine.Snapshot()
	if len(state.Entries) != cat.Len() {
		t.Fatalf("Fallback must still cover every lesson, got %d entries", len(state.Entries))
	}
	if !state.Entries["A"] || state.Entries["B"] || state.Entries["C"] {
		t.Errorf("Expected only A done from fallback, got %v", state.Entries)
	}
	if state.Percent != 33 {
		t.Errorf("Expected percent 33, got %d", state.Percent)
	}
}

func TestLoadProgress_NextBatchWaitsForSettledReads(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore()
	store.blockPrefix = "mahan_"
	store.release = make(chan struct{})
	store.started = make(chan string, 16)
	engine := newTestEngine(cat, store, newFakeCache())
	defer engine.Close()

	loadDone := make(chan error, 1)
	go func() {
		loadDone <- engine.LoadProgress(context.Background(), "mahan")
	}()

	// batch size is 2, so exactly A and B may be requested up front
	first := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case key := <-store.started:
			first[key] = true
		case <-time.After(2 * time.Second):
			t.Fatal("First batch never started")
		}
	}
	if !first[ProgressKey("mahan", "A")] || !first[ProgressKey("mahan", "B")] {
		t.Fatalf("Expected the first batch to request A and B, got %v", first)
	}

	select {
	case key := <-store.started:
		t.Fatalf("Read of %q started before the first batch settled", key)
	case <-time.After(100 * time.Millisecond):
	}

	close(store.release)
	select {
	case key := <-store.started:
		if key != ProgressKey("mahan", "C") {
			t.Fatalf("Expected the second batch to request C, got %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Second batch never started")
	}

	select {
	case err := <-loadDone:
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Load never finished")
	}
	if got := len(engine.Snapshot().Entries); got != cat.Len() {
		t.Errorf("Expected %d entries after the load, got %d", cat.Len(), got)
	}
}

func TestSwitchViewedUser_StaleResultsAreDiscarded(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore()
	store.docs["mahan_A"] = true
	store.docs["jojo_C"] = true
	store.blockPrefix = "mahan_"
	store.release = make(chan struct{})
	store.started = make(chan string, 16)
	engine := newTestEngine(cat, store, newFakeCache())
	defer engine.Close()

	loadDone := make(chan error, 1)
	go func() {
		loadDone <- engine.LoadProgress(context.Background(), "mahan")
	}()

	// wait until the mahan fetch is in flight
	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Fatal("mahan load never started")
	}

	engine.SwitchViewedUser("jojo")
	waitFor(t, func() bool {
		state := engine.Snapshot()
		return state.ViewedUser == "jojo" && !state.Loading
	})

	// let the stale mahan reads settle, then make sure nothing merged
	close(store.release)
	select {
	case <-loadDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stale load never returned")
	}

	state := engine.Snapshot()
	if state.ViewedUser != "jojo" {
		t.Fatalf("Expected viewed user jojo, got %s", state.ViewedUser)
	}
	if state.Entries["A"] {
		t.Error("Stale mahan results leaked into jojo's entries")
	}
	if !state.Entries["C"] {
		t.Error("jojo's own entries went missing")
	}
}

func TestList_WindowGrowsAndResets(t *testing.T) {
	cat := testCatalog(t)
	engine := newTestEngine(cat, newFakeStore(), newFakeCache())
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	page := engine.List(TabNotDone, "", false)
	if page.Total != 3 || page.Shown != 2 {
		t.Fatalf("Expected first window 2 of 3, got %d of %d", page.Shown, page.Total)
	}

	page = engine.List(TabNotDone, "", true)
	if page.Shown != 3 {
		t.Fatalf("Expected grown window to show all 3, got %d", page.Shown)
	}

	// an entries change resets the window to a single page
	if err := engine.Toggle(context.Background(), "mahan", "C"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	page = engine.List(TabNotDone, "", false)
	if page.Total != 2 || page.Shown != 2 {
		t.Fatalf("Expected reset window 2 of 2, got %d of %d", page.Shown, page.Total)
	}
}

func TestList_EmptyTagIsEmptyNotLoading(t *testing.T) {
	cat := testCatalog(t)
	engine := newTestEngine(cat, newFakeStore(), newFakeCache())
	defer engine.Close()

	if err := engine.LoadProgress(context.Background(), "mahan"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	page := engine.List(TabNotDone, "nonexistent", false)
	if page.Loading {
		t.Error("A loaded empty list must not report loading")
	}
	if len(page.Items) != 0 || page.Total != 0 {
		t.Errorf("Expected an empty window, got %d items of %d", len(page.Items), page.Total)
	}
	if page.TagPercent != 0 {
		t.Errorf("A tag with zero lessons must report 0 percent, got %d", page.TagPercent)
	}
}
