package domain

// SyncState is a point-in-time snapshot of one user's synchronized
// completion state. The progress engine owns the live state; consumers
// only ever see copies.
type SyncState struct {
	ViewedUser string          `json:"viewed_user"`
	Loading    bool            `json:"loading"`
	Entries    map[string]bool `json:"entries"`
	Percent    int             `json:"percent"`
}

// DotMap is the calendar indicator view: lesson title -> user -> done.
// It is display-only and independent of the per-viewed-user SyncState.
type DotMap map[string]map[string]bool
