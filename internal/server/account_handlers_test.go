package server_test

import (
	"net/http"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func TestRequestAccountCreate(t *testing.T) {
	engine, e, r := setup(t)

	r.PUT("/account").SetJSON(gofight.D{"account_name": "george"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	bearer := signIn(t, engine, e, "george.abitbol@nowhere.lan")

	r.PUT("/account").SetHeader(basic(bearer)).SetJSON(gofight.D{"account_name": "  "}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-parameters","message":"No account_name provided."}}`, r.Body.String())
	})

	r.PUT("/account").SetHeader(basic(bearer)).SetJSON(gofight.D{"account_name": "George"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Equal(t, "George", string(v.GetStringBytes("name")))
		assert.Equal(t, "george.abitbol@nowhere.lan", string(v.GetStringBytes("email")))
		assert.Equal(t, "user", string(v.GetStringBytes("role")))
		assert.True(t, v.GetBool("email_verified"))
		assert.Regexp(t, `^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-4[a-fA-F0-9]{3}-[89aAbB][a-fA-F0-9]{3}-[a-fA-F0-9]{12}$`, string(v.GetStringBytes("id")))
	})

	r.PUT("/account").SetHeader(basic(bearer)).SetJSON(gofight.D{"account_name": "georges"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusConflict, r.Code, "the email already has an account")
		assert.JSONEq(t, `{"error":{"tag":"account-exists","message":"An account already exists with this name or email."}}`, r.Body.String())
	})

	other := signIn(t, engine, e, "jose@nowhere.lan")
	r.PUT("/account").SetHeader(basic(other)).SetJSON(gofight.D{"account_name": "george"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusConflict, r.Code, "names are unique regardless of their case")
	})
}

func TestRequestAccountShowAndDelete(t *testing.T) {
	engine, e, r := setup(t)
	bearer := signIn(t, engine, e, "george.abitbol@nowhere.lan")

	r.GET("/account").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"account-not-found","message":"No account exists for this session."}}`, r.Body.String())
	})

	r.PUT("/account").SetHeader(basic(bearer)).SetJSON(gofight.D{"account_name": "george"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)
	})

	r.GET("/account").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Equal(t, "george", string(v.GetStringBytes("name")))
	})

	r.DELETE("/account").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})

	r.GET("/account").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})

	r.GET("/session").SetHeader(basic(bearer)).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code, "the session outlives the account")
	})
}
