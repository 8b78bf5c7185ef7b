package domain

import "time"

// LessonRecord is a single scheduled lesson from the course catalog.
// Records are loaded once at startup and never mutated afterwards.
type LessonRecord struct {
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Day   string    `json:"day"`
	Tag   string    `json:"tag"`
}

// CalendarEvent is a LessonRecord projected onto the calendar grid.
// Lessons occupy a single day, so start and end share the date.
type CalendarEvent struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Day   string    `json:"day"`
	Tag   string    `json:"tag"`
}

// Event converts the lesson to its calendar projection.
func (l LessonRecord) Event() CalendarEvent {
	return CalendarEvent{
		Title: l.Title,
		Start: l.Date,
		End:   l.Date,
		Day:   l.Day,
		Tag:   l.Tag,
	}
}
