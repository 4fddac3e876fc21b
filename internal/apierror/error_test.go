package apierror_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/focalpics/focal/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestAPIError(t *testing.T) {
	err := apierror.New("some message")

	assert.Equal(t, "some message", err.Error())
	assert.Equal(t, http.StatusBadRequest, apierror.StatusCode(err))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, apierror.StatusCode(apierror.Unauthorized()))
	assert.Equal(t, http.StatusInternalServerError, apierror.StatusCode(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, apierror.StatusCode(&apierror.APIError{}))
}

func TestAPIErrorJSON(t *testing.T) {
	payload, err := json.Marshal(apierror.NewWithTagCode(http.StatusConflict, "account-exists", "Account name in use."))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"error":{"tag":"account-exists","message":"Account name in use."}}`, string(payload))
	assert.Equal(t, "invalid-auth", apierror.Unauthorized().Tag())
}
