package session

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
)

// DefaultTokenLength is the length of generated session tokens.
const DefaultTokenLength = 128

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SecureToken generates a random alphanumeric token of the given length.
func SecureToken(length int) string {
	token := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // should never occured because max >= 0
		}
		token[i] = alphanumeric[n.Int64()]
	}

	return string(token)
}

// SecureCompare compares the givens strings in a constant time.
// So length info is not leaked via timing attacks.
func SecureCompare(s1, s2 string) bool {
	return subtle.ConstantTimeCompare([]byte(s1), []byte(s2)) == 1
}
