package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mahan-dev/course-tracker/internal/domain"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/auth"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/driver"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/uuid"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/validate"
	"github.com/mahan-dev/course-tracker/internal/progress"
)

// UserHandler the two-name login gate and session lifecycle
type UserHandler struct {
	JWTUtil   *auth.JWTUtil
	Users     *domain.UserSet
	Manager   *progress.Manager
	KVStore   driver.KeyValueDB
	IDGen     uuid.Generator
	Validator validate.Validator
}

// NewUserHandler create a user controller instance
func NewUserHandler(
	JWTUtil *auth.JWTUtil,
	Users *domain.UserSet,
	Manager *progress.Manager,
	KVStore driver.KeyValueDB,
	IDGen uuid.Generator,
	Validator validate.Validator,
) *UserHandler {
	return &UserHandler{
		JWTUtil:   JWTUtil,
		Users:     Users,
		Manager:   Manager,
		KVStore:   KVStore,
		IDGen:     IDGen,
		Validator: Validator,
	}
}

type loginRequest struct {
	Name string `json:"name" validate:"required"`
}

type sessionResponse struct {
	User         string `json:"user"`
	Color        string `json:"color"`
	Partner      string `json:"partner"`
	PartnerColor string `json:"partner_color"`
}

// HandleSignIn case-insensitive allowlist login. Any name outside the two
// configured users is rejected before any state is touched.
func (uh *UserHandler) HandleSignIn(c echo.Context) (err error) {
	post := new(loginRequest)
	if err = c.Bind(post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, internal.Error()))
	}
	if err := uh.Validator.Struct(post); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Please enter your name", err))
	}

	profile, ok := uh.Users.Resolve(post.Name)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			NewRESTStandardError(http.StatusUnauthorized, domain.ErrUserNotAllowed.Error()))
	}

	sessionID, err := uh.IDGen.Generate()
	if err != nil {
		return err
	}
	uh.Manager.Create(sessionID, profile.Name)

	tokenStr, err := uh.JWTUtil.GenerateTokenStr(profile.Name, sessionID, profile.Color)
	if err != nil {
		return err
	}
	uh.JWTUtil.SetClientToken(c, tokenStr)
	return c.JSON(http.StatusOK, uh.sessionPayload(profile))
}

// HandleSignOut blacklist the outstanding token and tear the session down
func (uh *UserHandler) HandleSignOut(c echo.Context) (err error) {
	ju := uh.JWTUtil

	if tokenStr, err := ju.ExtractToken(c); err == nil {
		if token, err := ju.Validate(tokenStr); err == nil {
			uh.Manager.Remove(token.SID)
			ju.ClearClientToken(c)
			return uh.KVStore.SetEX(tokenStr, "", token.TimeRemaining())
		}
		return c.NoContent(http.StatusUnauthorized)
	}
	return nil
}

// HandleMe identify the signed-in user and their partner
func (uh *UserHandler) HandleMe(c echo.Context) error {
	claims := uh.JWTUtil.GetContextToken(c)
	profile, ok := uh.Users.Resolve(claims.UID)
	if !ok {
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.JSON(http.StatusOK, uh.sessionPayload(profile))
}

func (uh *UserHandler) sessionPayload(profile domain.UserProfile) *sessionResponse {
	resp := &sessionResponse{
		User:  profile.Name,
		Color: profile.Color,
	}
	if partner, ok := uh.Users.Partner(profile.Name); ok {
		resp.Partner = partner.Name
		resp.PartnerColor = partner.Color
	}
	return resp
}
