package http

import (
	"github.com/labstack/echo/v4"

	infra "github.com/mahan-dev/course-tracker/internal/infrastructure"
)

func v1Endpoint(
	websocket *infra.Websocket,
	UserHandler *UserHandler,
	ProgressHandler *ProgressHandler,
	CalendarHandler *CalendarHandler,
	jwtMiddleware echo.MiddlewareFunc,
	refreshMiddleware echo.MiddlewareFunc,
	requestIDMiddleware echo.MiddlewareFunc,
	traceLoggerMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{requestIDMiddleware, traceLoggerMiddleware},
		groups: []*apiGroup{
			{
				prefix: "/user",
				routes: []*route{
					{"POST", "/login", UserHandler.HandleSignIn, nil},
					{"PUT", "/sign-out", UserHandler.HandleSignOut, nil},
					{"GET", "/me", UserHandler.HandleMe, []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware}},
				},
			},
			{
				prefix:      "/progress",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
				routes: []*route{
					{"GET", "", ProgressHandler.HandleGetProgress, nil},
					{"POST", "/toggle", ProgressHandler.HandleToggle, nil},
					{"PUT", "/viewer", ProgressHandler.HandleSwitchViewer, nil},
					{"GET", "/list", ProgressHandler.HandleGetList, nil},
				},
			},
			{
				prefix:      "/calendar",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
				routes: []*route{
					{"GET", "", CalendarHandler.HandleGetCalendar, nil},
				},
			},
			{
				prefix: "/ws",
				routes: []*route{
					{"GET", "/calendar", websocket.WithHeartbeat(CalendarHandler.StreamDots), []echo.MiddlewareFunc{jwtMiddleware}},
				},
			},
		},
	}
}
