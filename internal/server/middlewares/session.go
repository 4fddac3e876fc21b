package middlewares

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/focalpics/focal/internal/apierror"
	"github.com/focalpics/focal/internal/server/session"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CurrentSessionContextKey is the key to retrieve the current_session from echo.Context.
const CurrentSessionContextKey = "current_session"

// Session returns a session auth middleware.
// The bearer token is read from the Authorization header (Basic or Bearer scheme)
// or from the cookie named cookieName.
// It stores current_session into echo.Context.
func Session(m session.Manager, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bearer := Bearer(c, cookieName)
			if bearer == "" {
				return c.JSON(http.StatusUnauthorized, apierror.Unauthorized())
			}

			s, err := m.SessionFromBearer(c.Request().Context(), bearer)
			switch errors.Cause(err) {
			case nil:
			case session.ErrSessionMismatch:
				logrus.WithField("path", c.Path()).Warn("http: bearer email does not match its session")
				fallthrough
			case session.ErrSessionNotFound, session.ErrInvalidBearer:
				return c.JSON(http.StatusUnauthorized, apierror.Unauthorized())
			default:
				return errors.Wrap(err, "could not get session")
			}

			c.Set(CurrentSessionContextKey, s)
			return next(c)
		}
	}
}

// Bearer extracts the bearer token of the request.
// The Authorization header has precedence over the cookie.
func Bearer(c echo.Context, cookieName string) string {
	if bearer := authorization(c.Request().Header.Get(echo.HeaderAuthorization)); bearer != "" {
		return bearer
	}

	cookie, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	bearer, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return bearer
}

func authorization(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}

	switch strings.ToLower(parts[0]) {
	case "basic", "bearer":
		return parts[1]
	}
	return ""
}
