package htpasswd

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt cost used to hash account emails.
	DefaultCost = 10
	// MaxEmailLength is the longest email bcrypt can hash, in bytes.
	MaxEmailLength = 72
)

// ErrEmailTooLong is returned when an email exceeds MaxEmailLength.
var ErrEmailTooLong = errors.New("htpasswd: email exceeds 72 bytes")

// Line builds the credential line of the given email and token.
// The email is hashed with a random salt so two lines for the same pair differ.
func Line(email, token string, cost int) (string, error) {
	if token == "" || strings.ContainsAny(token, ":\n") {
		return "", errors.New("htpasswd: invalid token")
	}
	if len(email) > MaxEmailLength {
		return "", ErrEmailTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(email), cost)
	if err != nil {
		return "", errors.Wrap(err, "could not hash email")
	}
	return token + ":" + string(hash) + "\n", nil
}

// Parse splits a credential line into its token and hash.
func Parse(line string) (token, hash string, ok bool) {
	line = strings.TrimSuffix(line, "\n")
	idx := strings.IndexByte(line, ':')
	if idx <= 0 || idx == len(line)-1 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

// Matches returns true if the line belongs to the given email and token.
func Matches(line, email, token string) bool {
	t, hash, ok := Parse(line)
	if !ok || t != token {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(email)) == nil
}
