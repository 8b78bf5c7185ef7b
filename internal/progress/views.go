package progress

import (
	"math"

	"github.com/mahan-dev/course-tracker/internal/domain"
)

// FilterByTag keeps the lessons carrying tag, in catalog order.
// An empty tag keeps everything.
func FilterByTag(lessons []domain.LessonRecord, tag string) []domain.LessonRecord {
	if tag == "" {
		return lessons
	}
	var out []domain.LessonRecord
	for _, l := range lessons {
		if l.Tag == tag {
			out = append(out, l)
		}
	}
	return out
}

// FilterByCompletion keeps the lessons whose completion flag equals done.
// Lessons absent from entries count as not done.
func FilterByCompletion(lessons []domain.LessonRecord, entries map[string]bool, done bool) []domain.LessonRecord {
	var out []domain.LessonRecord
	for _, l := range lessons {
		if entries[l.Title] == done {
			out = append(out, l)
		}
	}
	return out
}

// Window truncates the list to the first size lessons.
func Window(lessons []domain.LessonRecord, size int) []domain.LessonRecord {
	if size < 0 {
		size = 0
	}
	if size > len(lessons) {
		size = len(lessons)
	}
	return lessons[:size]
}

// TagPercent is the completion percentage within one tag,
// 0 when the tag has no lessons.
func TagPercent(lessons []domain.LessonRecord, entries map[string]bool, tag string) int {
	tagged := FilterByTag(lessons, tag)
	if len(tagged) == 0 {
		return 0
	}
	done := 0
	for _, l := range tagged {
		if entries[l.Title] {
			done++
		}
	}
	return roundPercent(done, len(tagged))
}

func roundPercent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

func percentOf(entries map[string]bool, total int) int {
	done := 0
	for _, v := range entries {
		if v {
			done++
		}
	}
	return roundPercent(done, total)
}

func copyEntries(entries map[string]bool) map[string]bool {
	out := make(map[string]bool, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out
}
