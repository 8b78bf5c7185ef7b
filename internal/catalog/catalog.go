package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mahan-dev/course-tracker/internal/domain"
)

// Catalog is the ordered, immutable lesson list the whole system runs on.
// It is loaded once at startup; the Version fingerprint lets consumers
// detect that they were built against a different catalog.
type Catalog struct {
	Course  string
	Version string

	lessons []domain.LessonRecord
	byTitle map[string]int
}

type catalogFile struct {
	Course  string       `yaml:"course"`
	Lessons []lessonItem `yaml:"lessons"`
}

type lessonItem struct {
	Title string `yaml:"title"`
	Date  string `yaml:"date"`
	Day   string `yaml:"day"`
	Tag   string `yaml:"tag"`
}

const dateLayout = "2006-01-02"

// Load read and validate the catalog file
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to read catalog file: %w", err)
	}
	return Parse(raw)
}

// Parse build a Catalog from raw YAML
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("Failed to parse catalog: %w", err)
	}
	if len(file.Lessons) == 0 {
		return nil, fmt.Errorf("Catalog has no lessons")
	}

	lessons := make([]domain.LessonRecord, 0, len(file.Lessons))
	byTitle := make(map[string]int, len(file.Lessons))
	for i, item := range file.Lessons {
		if item.Title == "" {
			return nil, fmt.Errorf("Lesson %d has no title", i)
		}
		if _, dup := byTitle[item.Title]; dup {
			return nil, fmt.Errorf("Duplicated lesson title: %s", item.Title)
		}
		date, err := time.Parse(dateLayout, item.Date)
		if err != nil {
			return nil, fmt.Errorf("Lesson %q has a bad date: %w", item.Title, err)
		}
		byTitle[item.Title] = i
		lessons = append(lessons, domain.LessonRecord{
			Title: item.Title,
			Date:  date,
			Day:   item.Day,
			Tag:   item.Tag,
		})
	}

	return &Catalog{
		Course:  file.Course,
		Version: fingerprint(lessons),
		lessons: lessons,
		byTitle: byTitle,
	}, nil
}

func fingerprint(lessons []domain.LessonRecord) string {
	h := sha256.New()
	for _, l := range lessons {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", l.Title, l.Date.Format(dateLayout), l.Day, l.Tag)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Lessons returns the lessons in catalog order
func (c *Catalog) Lessons() []domain.LessonRecord {
	out := make([]domain.LessonRecord, len(c.lessons))
	copy(out, c.lessons)
	return out
}

// Titles returns the lesson titles in catalog order
func (c *Catalog) Titles() []string {
	titles := make([]string, len(c.lessons))
	for i, l := range c.lessons {
		titles[i] = l.Title
	}
	return titles
}

// Len reports the lesson count
func (c *Catalog) Len() int {
	return len(c.lessons)
}

// Has reports whether title belongs to the catalog
func (c *Catalog) Has(title string) bool {
	_, ok := c.byTitle[title]
	return ok
}

// Tags lists the distinct lesson tags, sorted
func (c *Catalog) Tags() []string {
	seen := make(map[string]struct{})
	for _, l := range c.lessons {
		if l.Tag != "" {
			seen[l.Tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Events projects every lesson onto the calendar grid
func (c *Catalog) Events() []domain.CalendarEvent {
	events := make([]domain.CalendarEvent, len(c.lessons))
	for i, l := range c.lessons {
		events[i] = l.Event()
	}
	return events
}
