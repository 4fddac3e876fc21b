package serializer

import "github.com/focalpics/focal/internal/server/session"

// Session serializes the render of an active session.
// The session token is never rendered.
func Session(m *session.Session) map[string]interface{} {
	return map[string]interface{}{
		"email":        m.AccountEmail,
		"created_at":   m.CreatedAt.UTC(),
		"verified_at":  utc(m.VerifiedAt),
		"last_seen_at": m.LastSeenAt.UTC(),
	}
}
