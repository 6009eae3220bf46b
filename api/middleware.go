package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

const userContextKey = "taskboard.user"

// authenticate resolves the current user from the request. When required is
// false, requests without credentials continue anonymously; invalid
// credentials are always rejected.
func authenticate(auth Authenticator, users domain.UserStore, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := authHeaderFromRequest(c.Request())
			if header == "" && !required {
				return next(c)
			}
			principal, err := auth.PrincipalFromAuthHeader(header)
			if err != nil {
				setErrorStage(c, "auth")
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			user, err := resolveUser(c, users, principal)
			if err != nil {
				setErrorStage(c, "user")
				return err
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// resolveUser loads the user for principal, registering it on first sight.
func resolveUser(c echo.Context, users domain.UserStore, p Principal) (domain.User, error) {
	ctx := c.Request().Context()
	u, err := users.GetUser(ctx, p.ID)
	if err != nil {
		return domain.User{}, err
	}
	if u != nil {
		return *u, nil
	}
	user := domain.User{ID: p.ID, Username: p.Username}
	if err := users.UpsertUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	log.WithFields(log.Fields{"user": user.ID, "username": user.Username}).Info("registered new user")
	return user, nil
}

// currentUser returns the authenticated user, if any.
func currentUser(c echo.Context) (domain.User, bool) {
	u, ok := c.Get(userContextKey).(domain.User)
	return u, ok
}
