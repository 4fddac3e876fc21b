package session_test

import (
	"encoding/base64"
	"testing"

	"github.com/focalpics/focal/internal/server/session"
	"github.com/stretchr/testify/assert"
)

func TestBearer(t *testing.T) {
	token := session.SecureToken(session.DefaultTokenLength)
	bearer := session.EncodeBearer("alice@example.com", token)

	payload, err := base64.StdEncoding.DecodeString(bearer)
	assert.NoError(t, err)
	assert.Equal(t, token+":alice@example.com", string(payload))

	email, decoded, err := session.DecodeBearer(bearer)
	assert.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
	assert.Equal(t, token, decoded)
}

func TestBearerEmailWithColon(t *testing.T) {
	email, token, err := session.DecodeBearer(session.EncodeBearer(`"a:b"@example.com`, "TOKEN"))
	assert.NoError(t, err)
	assert.Equal(t, `"a:b"@example.com`, email)
	assert.Equal(t, "TOKEN", token)
}

func TestDecodeBearerMalformed(t *testing.T) {
	for _, bearer := range []string{
		"not base64!",
		base64.StdEncoding.EncodeToString([]byte("missing-separator")),
	} {
		_, _, err := session.DecodeBearer(bearer)
		assert.Equal(t, session.ErrInvalidBearer, err, bearer)
	}
}
