package progress

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mahan-dev/course-tracker/internal/domain"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/driver"
)

// DotUpdate is one live change of a calendar indicator.
type DotUpdate struct {
	Title string `json:"title"`
	User  string `json:"user"`
	Done  bool   `json:"done"`
}

// Bridge maintains one standing subscription per (lesson, user) pair and
// merges the received booleans into a display-only dot map. It never
// feeds the toggle-authoritative engine state.
type Bridge struct {
	store  driver.DocumentStore
	logger *zap.Logger

	mu        sync.Mutex
	dots      domain.DotMap
	unsubs    []driver.Unsubscribe
	listeners map[int]chan DotUpdate
	nextID    int
}

// NewBridge create an idle bridge; call Watch to start subscriptions.
func NewBridge(store driver.DocumentStore, logger *zap.Logger) *Bridge {
	return &Bridge{
		store:     store,
		logger:    logger,
		dots:      make(domain.DotMap),
		listeners: make(map[int]chan DotUpdate),
	}
}

// Watch subscribes to every (lesson, user) pair. All previous
// subscriptions are released first so a lesson or user change never leaks
// the old set. A single failed subscription is logged and skipped, the
// indicator simply stays gray.
func (b *Bridge) Watch(ctx context.Context, lessons []domain.LessonRecord, users []string) {
	b.mu.Lock()
	b.releaseLocked()
	b.dots = make(domain.DotMap, len(lessons))
	b.mu.Unlock()

	for _, lesson := range lessons {
		for _, user := range users {
			title, user := lesson.Title, user
			unsub, err := b.store.Subscribe(ctx, ProgressKey(user, title), func(snap driver.DocumentSnapshot) {
				b.apply(title, user, snap.Exists && snap.Done)
			})
			if err != nil {
				b.logger.Warn("Failed to subscribe progress updates",
					zap.String("lesson.title", title),
					zap.String("user", user),
					zap.Error(err))
				continue
			}
			b.mu.Lock()
			b.unsubs = append(b.unsubs, unsub)
			b.mu.Unlock()
		}
	}
}

func (b *Bridge) apply(title, user string, done bool) {
	b.mu.Lock()
	byUser, ok := b.dots[title]
	if !ok {
		byUser = make(map[string]bool)
		b.dots[title] = byUser
	}
	if prev, seen := byUser[user]; seen && prev == done {
		b.mu.Unlock()
		return
	}
	byUser[user] = done

	update := DotUpdate{Title: title, User: user, Done: done}
	for _, ch := range b.listeners {
		// never block the subscription goroutine on a slow consumer
		select {
		case ch <- update:
		default:
		}
	}
	b.mu.Unlock()
}

// Snapshot returns a deep copy of the current dot map.
func (b *Bridge) Snapshot() domain.DotMap {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(domain.DotMap, len(b.dots))
	for title, byUser := range b.dots {
		c := make(map[string]bool, len(byUser))
		for user, done := range byUser {
			c[user] = done
		}
		out[title] = c
	}
	return out
}

// Listen registers a consumer for dot updates. The release function must
// be called when the consumer goes away.
func (b *Bridge) Listen() (<-chan DotUpdate, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan DotUpdate, 64)
	b.listeners[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.listeners[id]; ok {
			delete(b.listeners, id)
			close(ch)
		}
	}
}

// Close releases every subscription and listener.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
	for id, ch := range b.listeners {
		delete(b.listeners, id)
		close(ch)
	}
}

func (b *Bridge) releaseLocked() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
