package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.elastic.co/apm"
	"go.uber.org/zap"

	"github.com/mahan-dev/course-tracker/internal/catalog"
	"github.com/mahan-dev/course-tracker/internal/domain"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/driver"
)

const remoteWriteTimeout = 10 * time.Second

// Options tune the engine's fetch pacing and list windowing.
type Options struct {
	BatchSize  int           // lessons read per batch
	BatchDelay time.Duration // pause between batches, keeps read bursts bounded
	PageSize   int           // list window growth step
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 15
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
	return o
}

// Engine owns one session's synchronized view of a single user's
// completion state. It is the only writer of that state; the HTTP layer
// reads snapshots and requests mutations.
//
// The engine is locally authoritative: toggles apply immediately, the
// remote write is fire-and-forget, and the next successful load is the
// reconciliation point.
type Engine struct {
	actingUser string
	catalog    *catalog.Catalog
	store      driver.DocumentStore
	cache      driver.FallbackCache
	logger     *zap.Logger
	opts       Options

	baseCtx context.Context
	stop    context.CancelFunc

	mu         sync.Mutex
	viewedUser string
	entries    map[string]bool
	loading    bool
	percent    int

	gen    int                // load generation, stale results carry an older one
	cancel context.CancelFunc // cancels the in-flight load

	rev       int // bumped on every entries change, resets the list window
	winFilter winKey
	window    int
}

type winKey struct {
	tab Tab
	tag string
	rev int
}

// NewEngine create an engine for one signed-in user. The first load is
// not started here; call SwitchViewedUser (or LoadProgress) to populate.
func NewEngine(
	actingUser string,
	cat *catalog.Catalog,
	store driver.DocumentStore,
	cache driver.FallbackCache,
	logger *zap.Logger,
	opts Options,
) *Engine {
	ctx, stop := context.WithCancel(context.Background())
	return &Engine{
		actingUser: actingUser,
		catalog:    cat,
		store:      store,
		cache:      cache,
		logger:     logger.With(zap.String("session.user", actingUser)),
		opts:       opts.withDefaults(),
		baseCtx:    ctx,
		stop:       stop,
		viewedUser: actingUser,
		entries:    make(map[string]bool),
		loading:    true,
	}
}

// ActingUser the signed-in identity this engine belongs to.
func (e *Engine) ActingUser() string {
	return e.actingUser
}

// Snapshot returns a copy of the current sync state.
func (e *Engine) Snapshot() domain.SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.SyncState{
		ViewedUser: e.viewedUser,
		Loading:    e.loading,
		Entries:    copyEntries(e.entries),
		Percent:    e.percent,
	}
}

// SwitchViewedUser discards the current entries, marks the state loading
// and reloads the new user's progress in the background. Any in-flight
// load for the previous user is cancelled; should its results still
// arrive they are dropped by the generation check.
func (e *Engine) SwitchViewedUser(user string) {
	ctx, gen := e.beginLoad(e.baseCtx, user)
	go func() {
		if err := e.runLoad(ctx, user, gen); err != nil {
			e.logger.Debug("Progress load interrupted", zap.String("viewed.user", user), zap.Error(err))
		}
	}()
}

// LoadProgress fetches user's completion state and blocks until the state
// is populated, superseded by a newer load, or ctx is cancelled.
func (e *Engine) LoadProgress(ctx context.Context, user string) error {
	loadCtx, gen := e.beginLoad(ctx, user)
	return e.runLoad(loadCtx, user, gen)
}

// beginLoad resets the visible state for a fresh load and claims the next
// load generation.
func (e *Engine) beginLoad(ctx context.Context, user string) (context.Context, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.gen++
	e.viewedUser = user
	e.entries = make(map[string]bool)
	e.loading = true
	e.percent = 0
	e.rev++
	return loadCtx, e.gen
}

func (e *Engine) runLoad(ctx context.Context, user string, gen int) error {
	span, ctx := apm.StartSpan(ctx, "Engine.LoadProgress", "sync")
	defer span.End()

	titles := e.catalog.Titles()
	total := len(titles)
	entries := make(map[string]bool, total)
	failures := 0

	for start := 0; start < total; start += e.opts.BatchSize {
		if start > 0 && e.opts.BatchDelay > 0 {
			// deliberate pacing between batches, not a correctness need
			select {
			case <-time.After(e.opts.BatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		end := start + e.opts.BatchSize
		if end > total {
			end = total
		}
		batch := titles[start:end]
		snaps := make([]driver.DocumentSnapshot, len(batch))
		errs := make([]error, len(batch))

		var wg sync.WaitGroup
		for i, title := range batch {
			wg.Add(1)
			go func(i int, title string) {
				defer wg.Done()
				snaps[i], errs[i] = e.store.GetDocument(ctx, ProgressKey(user, title))
			}(i, title)
		}
		// the next batch must not start until every read here settled
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}

		for i, title := range batch {
			if errs[i] != nil {
				// a failed read means "not done", same as a missing document
				failures++
				entries[title] = false
				continue
			}
			entries[title] = snaps[i].Exists && snaps[i].Done
		}
	}

	if total > 0 && failures == total {
		e.logger.Warn("Progress store unreachable, loading from fallback cache",
			zap.String("viewed.user", user))
		entries = e.fallbackEntries(ctx, user, titles)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		// a newer load owns the state now
		return nil
	}
	e.entries = entries
	e.percent = percentOf(entries, total)
	e.loading = false
	e.rev++
	return nil
}

// fallbackEntries reads whatever per-lesson booleans the local cache
// holds for user; lessons absent from the cached copy default to false.
func (e *Engine) fallbackEntries(ctx context.Context, user string, titles []string) map[string]bool {
	entries := make(map[string]bool, len(titles))
	for _, title := range titles {
		entries[title] = false
	}

	raw, found, err := e.cache.GetValue(ctx, CacheKey(user))
	if err != nil {
		e.logger.Warn("Fallback cache read failed", zap.Error(err))
		return entries
	}
	if !found {
		return entries
	}
	var cached map[string]bool
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		e.logger.Warn("Fallback cache entry is corrupt", zap.String("cache.key", CacheKey(user)), zap.Error(err))
		return entries
	}
	for _, title := range titles {
		if done, ok := cached[title]; ok {
			entries[title] = done
		}
	}
	return entries
}

// Toggle flips the completion flag of one lesson for the viewed user.
// Only the owner of the viewed progress may toggle; the partner's view is
// read-only. The local state mutates synchronously, the fallback cache is
// updated with the whole map, and the remote write happens asynchronously.
// A remote failure is logged and never rolled back or retried.
func (e *Engine) Toggle(ctx context.Context, actingUser, title string) error {
	span, ctx := apm.StartSpan(ctx, "Engine.Toggle", "sync")
	defer span.End()

	if !e.catalog.Has(title) {
		return domain.ErrUnknownLesson
	}

	e.mu.Lock()
	if actingUser != e.viewedUser {
		e.mu.Unlock()
		return domain.ErrReadOnlyView
	}
	user := e.viewedUser
	next := !e.entries[title]
	e.entries[title] = next
	e.percent = percentOf(e.entries, e.catalog.Len())
	e.rev++
	snapshot := copyEntries(e.entries)
	e.mu.Unlock()

	// the local copy is the durable intent, persist it before the remote write
	if raw, err := json.Marshal(snapshot); err == nil {
		if err := e.cache.SetValue(ctx, CacheKey(user), string(raw)); err != nil {
			e.logger.Warn("Fallback cache write failed", zap.String("cache.key", CacheKey(user)), zap.Error(err))
		}
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(e.baseCtx, remoteWriteTimeout)
		defer cancel()
		if err := e.store.SetDocument(writeCtx, ProgressKey(user, title), next); err != nil {
			// last-writer-wins policy: keep the optimistic state, reconcile on the next load
			e.logger.Warn("Remote progress write failed",
				zap.String("lesson.title", title),
				zap.String("viewed.user", user),
				zap.Error(err))
		}
	}()
	return nil
}

// List returns one window of the filtered lesson list. The window grows by
// one page per grow request and snaps back to a single page whenever the
// tab, the tag or the underlying entries change.
func (e *Engine) List(tab Tab, tag string, grow bool) ListPage {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := winKey{tab: tab, tag: tag, rev: e.rev}
	if key != e.winFilter {
		e.winFilter = key
		e.window = e.opts.PageSize
	} else if grow {
		e.window += e.opts.PageSize
	}

	lessons := FilterByTag(e.catalog.Lessons(), tag)
	filtered := FilterByCompletion(lessons, e.entries, tab == TabDone)
	shown := Window(filtered, e.window)

	items := make([]ListItem, len(shown))
	for i, l := range shown {
		items[i] = ListItem{Lesson: l, Done: e.entries[l.Title]}
	}

	page := ListPage{
		Items:   items,
		Total:   len(filtered),
		Shown:   len(items),
		Loading: e.loading,
	}
	if tag != "" {
		page.TagPercent = TagPercent(e.catalog.Lessons(), e.entries, tag)
	}
	return page
}

// Close cancels any in-flight load and any outstanding remote writes.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()
	e.stop()
}
