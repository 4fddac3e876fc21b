package htpasswd

// This file is only for test purpose and is only loaded by test framework.

// OnCompactRead registers f to run once a compaction has read the credential file.
func OnCompactRead(s *Store, f func()) {
	s.afterRead = f
}
