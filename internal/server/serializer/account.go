package serializer

import (
	"time"

	"github.com/focalpics/focal/internal/model"
)

// Account serializes the render of an account.
func Account(m *model.Account) map[string]interface{} {
	return map[string]interface{}{
		"id":                m.ID,
		"name":              m.Name,
		"email":             m.Email,
		"role":              m.Role,
		"email_verified":    m.EmailVerifiedAt != nil,
		"email_verified_at": utc(m.EmailVerifiedAt),
		"created_at":        utc(m.CreatedAt),
		"updated_at":        utc(m.UpdatedAt),
	}
}

func utc(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
