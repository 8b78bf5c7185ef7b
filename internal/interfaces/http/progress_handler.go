package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mahan-dev/course-tracker/internal/domain"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/auth"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/validate"
	"github.com/mahan-dev/course-tracker/internal/progress"
)

// ProgressHandler exposes the sync engine of the request's session
type ProgressHandler struct {
	manager   *progress.Manager
	jwtUtil   *auth.JWTUtil
	users     *domain.UserSet
	validator validate.Validator
}

func NewProgressHandler(
	Manager *progress.Manager,
	JWTUtil *auth.JWTUtil,
	Users *domain.UserSet,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{Manager, JWTUtil, Users, Validator}
}

// engine resolves the session engine from the request token. A valid
// token without a live engine means the server restarted under the
// client, re-login is the recovery path.
func (ph *ProgressHandler) engine(c echo.Context) (*progress.Engine, *auth.AppTokenClaims, error) {
	claims := ph.jwtUtil.GetContextToken(c)
	if claims == nil {
		return nil, nil, domain.ErrNoSession
	}
	engine, ok := ph.manager.Get(claims.SID)
	if !ok {
		return nil, nil, domain.ErrNoSession
	}
	return engine, claims, nil
}

// HandleGetProgress current sync state snapshot for the viewed user
func (ph *ProgressHandler) HandleGetProgress(c echo.Context) error {
	engine, _, err := ph.engine(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, NewRESTStandardError(http.StatusUnauthorized, err.Error()))
	}
	return c.JSON(http.StatusOK, engine.Snapshot())
}

type toggleRequest struct {
	Title string `json:"title" validate:"required"`
}

// HandleToggle flip one lesson of the acting user's own progress
func (ph *ProgressHandler) HandleToggle(c echo.Context) error {
	engine, claims, err := ph.engine(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, NewRESTStandardError(http.StatusUnauthorized, err.Error()))
	}

	post := new(toggleRequest)
	if err := c.Bind(post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, internal.Error()))
	}
	if err := ph.validator.Struct(post); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", err))
	}

	err = engine.Toggle(c.Request().Context(), claims.UID, post.Title)
	switch {
	case errors.Is(err, domain.ErrReadOnlyView):
		return c.JSON(http.StatusForbidden, NewRESTStandardError(http.StatusForbidden, err.Error()))
	case errors.Is(err, domain.ErrUnknownLesson):
		return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
	case err != nil:
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type switchViewerRequest struct {
	User string `json:"user" validate:"required"`
}

// HandleSwitchViewer change whose progress the session displays.
// Viewing the partner is allowed, toggling their lessons is not.
func (ph *ProgressHandler) HandleSwitchViewer(c echo.Context) error {
	engine, _, err := ph.engine(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, NewRESTStandardError(http.StatusUnauthorized, err.Error()))
	}

	post := new(switchViewerRequest)
	if err := c.Bind(post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, internal.Error()))
	}
	if err := ph.validator.Struct(post); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", err))
	}

	profile, ok := ph.users.Resolve(post.User)
	if !ok {
		return c.JSON(http.StatusNotFound,
			NewRESTStandardError(http.StatusNotFound, domain.ErrUserNotAllowed.Error()))
	}

	engine.SwitchViewedUser(profile.Name)
	return c.NoContent(http.StatusAccepted)
}

// HandleGetList one window of the filtered lesson list
func (ph *ProgressHandler) HandleGetList(c echo.Context) error {
	engine, _, err := ph.engine(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, NewRESTStandardError(http.StatusUnauthorized, err.Error()))
	}

	tab := progress.Tab(c.QueryParam("tab"))
	switch tab {
	case "":
		tab = progress.TabNotDone
	case progress.TabDone, progress.TabNotDone:
	default:
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", []*validate.FieldError{
				validate.NewFieldError("tab", "tab must be one of (done, not_done)"),
			}))
	}

	tag := c.QueryParam("tag")
	grow := c.QueryParam("grow") == "1" || c.QueryParam("grow") == "true"
	return c.JSON(http.StatusOK, engine.List(tab, tag, grow))
}
