package infra

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Websocket upgrades echo requests and keeps connections alive with
// ping/pong heartbeats
type Websocket struct {
	upgrader websocket.Upgrader

	writeWait    time.Duration
	pongWait     time.Duration
	pingInterval time.Duration
}

// NewWebsocket create a Websocket helper with default timings
func NewWebsocket() *Websocket {
	pongWait := 30 * time.Second
	return &Websocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			HandshakeTimeout: 3 * time.Second,
		},
		writeWait:    10 * time.Second,
		pongWait:     pongWait,
		pingInterval: pongWait * 9 / 10,
	}
}

// WithHeartbeat wrap handler function with heartbeat probe. The handler is
// called in a loop until it returns an error, the connection is closed
// when either the handler or the heartbeat fails.
func (ws *Websocket) WithHeartbeat(handler func(*websocket.Conn) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := ws.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		go ws.heartbeatRoutine(conn)
		go processRoutine(conn, handler)
		return nil
	}
}

func (ws *Websocket) heartbeatRoutine(conn *websocket.Conn) {
	ticker := time.NewTicker(ws.pingInterval)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(ws.pongWait))
		return nil
	})
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for range ticker.C {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ws.writeWait)); err != nil {
			return
		}
	}
}

func processRoutine(conn *websocket.Conn, handler func(*websocket.Conn) error) {
	defer conn.Close()
	for {
		if err := handler(conn); err != nil {
			break
		}
	}
}
