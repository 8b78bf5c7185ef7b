package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mahan-dev/course-tracker/internal/catalog"
	"github.com/mahan-dev/course-tracker/internal/domain"
	"github.com/mahan-dev/course-tracker/internal/progress"
)

// CalendarHandler the calendar grid plus its live dot indicators
type CalendarHandler struct {
	catalog *catalog.Catalog
	bridge  *progress.Bridge
	users   *domain.UserSet
}

func NewCalendarHandler(Catalog *catalog.Catalog, Bridge *progress.Bridge, Users *domain.UserSet) *CalendarHandler {
	return &CalendarHandler{Catalog, Bridge, Users}
}

type calendarResponse struct {
	Course  string                 `json:"course"`
	Version string                 `json:"version"`
	Events  []domain.CalendarEvent `json:"events"`
	Users   []domain.UserProfile   `json:"users"`
	Dots    domain.DotMap          `json:"dots"`
}

type dotMessage struct {
	Type   string              `json:"type"` // "snapshot" or "update"
	Dots   domain.DotMap       `json:"dots,omitempty"`
	Update *progress.DotUpdate `json:"update,omitempty"`
}

// HandleGetCalendar full calendar payload with the current dot state
func (ch *CalendarHandler) HandleGetCalendar(c echo.Context) error {
	return c.JSON(http.StatusOK, &calendarResponse{
		Course:  ch.catalog.Course,
		Version: ch.catalog.Version,
		Events:  ch.catalog.Events(),
		Users:   ch.users.Profiles(),
		Dots:    ch.bridge.Snapshot(),
	})
}

// StreamDots push dot updates over a websocket connection. The first
// message is a full snapshot, every following one a single update. The
// bridge listener is released when the connection dies.
func (ch *CalendarHandler) StreamDots(conn *websocket.Conn) error {
	if err := conn.WriteJSON(&dotMessage{Type: "snapshot", Dots: ch.bridge.Snapshot()}); err != nil {
		return err
	}

	updates, release := ch.bridge.Listen()
	defer release()

	// drain the reader so ping/pong control frames are processed
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return websocket.ErrCloseSent
			}
			if err := conn.WriteJSON(&dotMessage{Type: "update", Update: &update}); err != nil {
				return err
			}
		case <-readerDone:
			return websocket.ErrCloseSent
		}
	}
}
