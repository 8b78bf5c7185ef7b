package driver

import "context"

// DocumentSnapshot is the state of one progress document at read time.
// A missing document is a valid state, it means the lesson was never toggled.
type DocumentSnapshot struct {
	Exists bool `json:"exists"`
	Done   bool `json:"done"`
}

// Unsubscribe releases a live subscription. Safe to call more than once.
type Unsubscribe func()

// DocumentStore is the remote progress store contract: point reads and
// writes of a boolean "done" document per key, plus a live-update feed
// per key. Keys have the form "{user}_{lessonTitle}".
type DocumentStore interface {
	GetDocument(ctx context.Context, key string) (DocumentSnapshot, error)
	SetDocument(ctx context.Context, key string, done bool) error
	// Subscribe delivers the current snapshot immediately and every
	// subsequent update until released or ctx is cancelled.
	Subscribe(ctx context.Context, key string, fn func(DocumentSnapshot)) (Unsubscribe, error)
	Ping() error
}
