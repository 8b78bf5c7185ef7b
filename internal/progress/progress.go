// Package progress implements the synchronization core of the tracker:
// per-user completion state loaded in paced batches from the remote
// progress store, optimistic toggles with a local fallback copy, and the
// live calendar indicator feed.
package progress

import (
	"github.com/mahan-dev/course-tracker/internal/domain"
)

// Tab selects which completion slice of the lesson list is displayed.
type Tab string

const (
	TabDone    Tab = "done"
	TabNotDone Tab = "not_done"
)

// ProgressKey is the remote store document key for one (user, lesson) pair.
func ProgressKey(user, title string) string {
	return user + "_" + title
}

// CacheKey is the fallback cache key scoped to one user.
func CacheKey(user string) string {
	return "progress_" + user
}

// ListPage is one window of the filtered lesson list.
type ListPage struct {
	Items      []ListItem `json:"items"`
	Total      int        `json:"total"`       // lessons matching the filter
	Shown      int        `json:"shown"`       // lessons in this window
	TagPercent int        `json:"tag_percent"` // completion within the tag filter, 0 when no tag
	Loading    bool       `json:"loading"`
}

// ListItem is one displayed lesson with its completion flag.
type ListItem struct {
	Lesson domain.LessonRecord `json:"lesson"`
	Done   bool                `json:"done"`
}
