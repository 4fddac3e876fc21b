// Package htpasswd maintains a colon-delimited credential file of active
// session tokens, one `token:bcrypt(email)` line per verified session.
//
// The file stays readable by any Basic-Auth capable checker (e.g. a reverse proxy).
// Writers are serialized by a lockfile: its existence means a compaction is
// running. Appends arriving while the lockfile exists are queued in memory
// and written out by the compaction holding the lock, or by the appender
// itself once the lockfile is gone.
package htpasswd
