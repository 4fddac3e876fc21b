package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/focalpics/focal/internal/apierror"
	"github.com/focalpics/focal/internal/server/middlewares"
	"github.com/focalpics/focal/internal/server/serializer"
	sessionpkg "github.com/focalpics/focal/internal/server/session"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const cookieMaxAge = 365 * 24 * time.Hour

type (
	sess struct {
		sessions     sessionpkg.Manager
		cookieName   string
		cookieSecure bool
	}

	sessionParams struct {
		AccountEmail string `json:"account_email"`
		Token        string `json:"token"`
	}
)

// Create requests a magic link for the given email,
// or verifies the pending token of a magic link.
// Without body, the bearer token of the Authorization header or the cookie is
// checked and handed back.
func (h *sess) Create(c echo.Context) error {
	if c.Request().ContentLength == 0 {
		if bearer := middlewares.Bearer(c, h.cookieName); bearer != "" {
			return h.renew(c, bearer)
		}
	}

	var params sessionParams
	if err := c.Bind(&params); err != nil {
		return err
	}

	switch {
	case params.Token != "":
		return h.verify(c, params.Token)
	case params.AccountEmail != "":
		return h.request(c, params.AccountEmail)
	default:
		return c.JSON(http.StatusBadRequest, apierror.NewWithTagCode(
			http.StatusBadRequest,
			"invalid-parameters",
			"Please provide an account_email or a token.",
		))
	}
}

func (h *sess) request(c echo.Context, email string) error {
	err := h.sessions.CreateSession(c.Request().Context(), email)
	if errors.Cause(err) == sessionpkg.ErrInvalidEmail {
		return c.JSON(http.StatusBadRequest, apierror.NewWithTagCode(
			http.StatusBadRequest,
			"invalid-email",
			"Please provide a valid email address.",
		))
	}
	if err != nil {
		return errors.Wrap(err, "could not create session")
	}

	return c.NoContent(http.StatusAccepted)
}

func (h *sess) verify(c echo.Context, token string) error {
	bearer, err := h.sessions.VerifySession(c.Request().Context(), token)
	if errors.Cause(err) == sessionpkg.ErrSessionNotFound {
		return c.JSON(http.StatusUnauthorized, apierror.NewWithTagCode(
			http.StatusUnauthorized,
			"invalid-token",
			"The sign-in link is invalid or has expired.",
		))
	}
	if err != nil {
		return errors.Wrap(err, "could not verify session")
	}

	c.SetCookie(h.cookie(url.QueryEscape(bearer), cookieMaxAge))
	return c.JSON(http.StatusOK, echo.Map{
		"token": bearer,
	})
}

func (h *sess) renew(c echo.Context, bearer string) error {
	_, err := h.sessions.SessionFromBearer(c.Request().Context(), bearer)
	switch errors.Cause(err) {
	case nil:
	case sessionpkg.ErrSessionNotFound, sessionpkg.ErrSessionMismatch, sessionpkg.ErrInvalidBearer:
		return c.JSON(http.StatusUnauthorized, apierror.Unauthorized())
	default:
		return errors.Wrap(err, "could not get session")
	}

	c.SetCookie(h.cookie(url.QueryEscape(bearer), cookieMaxAge))
	return c.JSON(http.StatusOK, echo.Map{
		"token": bearer,
	})
}

// Show renders the current session.
func (h *sess) Show(c echo.Context) error {
	return c.JSON(http.StatusOK, serializer.Session(currentSession(c)))
}

// Delete terminates the session of the given bearer token.
func (h *sess) Delete(c echo.Context) error {
	var params sessionParams
	if err := c.Bind(&params); err != nil {
		return err
	}

	bearer := params.Token
	if bearer == "" {
		bearer = middlewares.Bearer(c, h.cookieName)
	}

	err := h.sessions.DeleteSession(c.Request().Context(), bearer)
	switch errors.Cause(err) {
	case nil:
	case sessionpkg.ErrInvalidBearer:
		return c.JSON(http.StatusBadRequest, apierror.NewWithTagCode(
			http.StatusBadRequest,
			"invalid-parameters",
			"The provided token is not valid.",
		))
	case sessionpkg.ErrSessionMismatch:
		logrus.Warn("http: session deletion refused for a mismatched email")
	default:
		return errors.Wrap(err, "could not delete session")
	}

	c.SetCookie(h.cookie("", -1))
	return c.NoContent(http.StatusNoContent)
}

func (h *sess) cookie(value string, maxAge time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = time.Now().Add(maxAge)
	}
	return cookie
}
