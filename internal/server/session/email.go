package session

import (
	"strings"

	"github.com/focalpics/focal/internal/htpasswd"
)

// ValidEmail performs a structural check of an email address:
// a non-empty local part and domain around the last '@', no whitespace.
// Emails longer than the credential file can hash are rejected.
func ValidEmail(email string) bool {
	if len(email) > htpasswd.MaxEmailLength {
		return false
	}

	idx := strings.LastIndexByte(email, '@')
	if idx <= 0 || idx == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}
