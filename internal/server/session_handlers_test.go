package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/focalpics/focal/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func TestRequestSessionCreate(t *testing.T) {
	engine, e, r := setup(t)

	r.POST("/session").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-parameters","message":"Request body can't be empty."}}`, r.Body.String())
	})

	r.POST("/session").SetJSON(gofight.D{}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-parameters","message":"Please provide an account_email or a token."}}`, r.Body.String())
	})

	r.POST("/session").SetJSON(gofight.D{"account_email": "george.abitbol"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-email","message":"Please provide a valid email address."}}`, r.Body.String())
	})
	r.POST("/session").SetJSON(gofight.D{"account_email": strings.Repeat("g", 70) + "@nowhere.lan"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code, "the email must fit in a credential line")
	})
	assert.Zero(t, e.outbox.count())

	r.POST("/session").SetJSON(gofight.D{"account_email": "george.abitbol@nowhere.lan"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusAccepted, r.Code)
		assert.Empty(t, r.Body.String(), "the token is only delivered by mail")
	})
	require.Equal(t, 1, e.outbox.count())
	assert.Equal(t, "george.abitbol@nowhere.lan", e.outbox.links[0].To)
}

func TestRequestSessionVerify(t *testing.T) {
	engine, e, r := setup(t)

	r.POST("/session").SetJSON(gofight.D{"token": "not-a-real-token"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-token","message":"The sign-in link is invalid or has expired."}}`, r.Body.String())
	})

	r.POST("/session").SetJSON(gofight.D{"account_email": "george.abitbol@nowhere.lan"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusAccepted, r.Code)
	})
	token := e.outbox.token(t)

	r.POST("/session").SetJSON(gofight.D{"token": token}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		bearer := string(v.GetStringBytes("token"))

		email, token, err := session.DecodeBearer(bearer)
		assert.NoError(t, err)
		assert.Equal(t, "george.abitbol@nowhere.lan", email)
		assert.GreaterOrEqual(t, len(token), session.DefaultTokenLength)

		ok, err := e.credentials.Contains(token)
		assert.NoError(t, err)
		assert.True(t, ok)

		cookies := (*httptest.ResponseRecorder)(r).Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "token", cookies[0].Name)
		assert.Equal(t, "/", cookies[0].Path)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, 365*24*60*60, cookies[0].MaxAge)

		value, err := url.QueryUnescape(cookies[0].Value)
		assert.NoError(t, err)
		assert.Equal(t, bearer, value)
	})

	r.POST("/session").SetJSON(gofight.D{"token": token}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code, "a magic link can only be used once")
	})
}

func TestRequestSessionShow(t *testing.T) {
	engine, e, r := setup(t)
	bearer := signIn(t, engine, e, "george.abitbol@nowhere.lan")

	r.GET("/session").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-auth","message":"Invalid login credentials."}}`, r.Body.String())
	})

	headers := []gofight.H{
		basic(bearer),
		{"Authorization": "Bearer " + bearer},
	}
	for _, header := range headers {
		r.GET("/session").SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)

			v, err := fastjson.Parse(r.Body.String())
			require.NoError(t, err)
			assert.Equal(t, "george.abitbol@nowhere.lan", string(v.GetStringBytes("email")))
			assert.True(t, v.Exists("created_at"))
			assert.True(t, v.Exists("verified_at"))
			assert.True(t, v.Exists("last_seen_at"))
			assert.False(t, v.Exists("token"))
		})
	}

	r.GET("/session").SetCookie(gofight.H{"token": url.QueryEscape(bearer)}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	_, token, err := session.DecodeBearer(bearer)
	require.NoError(t, err)

	forged := session.EncodeBearer("mallory@nowhere.lan", token)
	r.GET("/session").SetHeader(basic(forged)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	r.GET("/session").SetHeader(basic("%%%")).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})
}

func TestRequestSessionDelete(t *testing.T) {
	engine, e, r := setup(t)
	bearer := signIn(t, engine, e, "george.abitbol@nowhere.lan")
	_, token, err := session.DecodeBearer(bearer)
	require.NoError(t, err)

	r.DELETE("/session").SetJSON(gofight.D{"token": "%%%"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-parameters","message":"The provided token is not valid."}}`, r.Body.String())
	})

	r.DELETE("/session").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code, "no bearer token provided")
	})

	forged := session.EncodeBearer("mallory@nowhere.lan", token)
	r.DELETE("/session").SetJSON(gofight.D{"token": forged}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})
	_, err = e.ioc.Sessions.GetSession(context.Background(), token)
	assert.NoError(t, err, "a mismatched email must not terminate the session")

	r.DELETE("/session").SetJSON(gofight.D{"token": bearer}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)

		cookies := (*httptest.ResponseRecorder)(r).Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "token", cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})

	r.GET("/session").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	ok, err := e.credentials.Contains(token)
	assert.NoError(t, err)
	assert.False(t, ok)

	r.DELETE("/session").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code, "deleting twice is a no-op")
	})
}

func TestRequestSessionDeleteFromCookie(t *testing.T) {
	engine, e, r := setup(t)
	bearer := signIn(t, engine, e, "george.abitbol@nowhere.lan")

	r.DELETE("/session").SetCookie(gofight.H{"token": url.QueryEscape(bearer)}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})

	r.GET("/session").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})
}

func TestRequestSessionRenew(t *testing.T) {
	engine, e, r := setup(t)
	bearer := signIn(t, engine, e, "george.abitbol@nowhere.lan")

	r.POST("/session").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Equal(t, bearer, string(v.GetStringBytes("token")))
		assert.Len(t, (*httptest.ResponseRecorder)(r).Result().Cookies(), 1)
	})

	r.POST("/session").SetCookie(gofight.H{"token": url.QueryEscape(bearer)}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	r.POST("/session").SetHeader(basic(session.EncodeBearer("george.abitbol@nowhere.lan", "unknown"))).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-auth","message":"Invalid login credentials."}}`, r.Body.String())
	})
}
