package session

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidBearer is returned when a bearer token can not be decoded.
var ErrInvalidBearer = errors.New("invalid bearer token")

// EncodeBearer returns the bearer token held by clients: base64("<token>:<email>").
func EncodeBearer(email, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(token + ":" + email))
}

// DecodeBearer splits a bearer token into its email and session token.
func DecodeBearer(bearer string) (email, token string, err error) {
	payload, err := base64.StdEncoding.DecodeString(bearer)
	if err != nil {
		return "", "", ErrInvalidBearer
	}

	pair := string(payload)
	idx := strings.IndexByte(pair, ':')
	if idx < 0 {
		return "", "", ErrInvalidBearer
	}
	return pair[idx+1:], pair[:idx], nil
}
