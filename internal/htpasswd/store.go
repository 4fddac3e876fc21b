package htpasswd

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultRetryInterval is the default for Config.RetryInterval.
	DefaultRetryInterval = 100 * time.Millisecond
	// DefaultTimeout is the default for Config.Timeout.
	DefaultTimeout = 5 * time.Second
)

// ErrTimeout is returned when the lockfile could not be acquired, or a queued
// line was not written, before Config.Timeout elapsed.
var ErrTimeout = errors.New("htpasswd: timed out waiting for lockfile")

// Config holds Store configuration.
type Config struct {
	// Path of the credential file.
	Path string
	// Lockfile path, defaults to Path + ".lock".
	// It must live on the same filesystem as Path.
	Lockfile string
	// RetryInterval between two lockfile checks.
	RetryInterval time.Duration
	// Timeout of a single Append or Omit.
	Timeout time.Duration
	// Cost of the bcrypt hash.
	Cost int
}

// A Store is the file-backed credential ledger.
// It's safe to use it concurrently from multiple goroutines.
type Store struct {
	cfg Config

	// mu guards the credential file, the lockfile creation and the queue.
	mu    sync.Mutex
	queue []*pending

	// afterRead runs once compact has read the credential file.
	afterRead func()
}

type pending struct {
	line string
	done chan struct{}
}

// New returns a new Store.
func New(cfg Config) *Store {
	if cfg.Lockfile == "" {
		cfg.Lockfile = cfg.Path + ".lock"
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Cost == 0 {
		cfg.Cost = DefaultCost
	}

	return &Store{cfg: cfg}
}

// Path returns the credential file path.
func (s *Store) Path() string {
	return s.cfg.Path
}

// Append records a credential line for the given email and token.
// When a compaction is running the line is queued and Append blocks until it
// is written or the timeout elapses.
func (s *Store) Append(ctx context.Context, email, token string) error {
	line, err := Line(email, token, s.cfg.Cost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.locked() {
		err = s.write(line)
		s.mu.Unlock()
		return err
	}

	p := &pending{line: line, done: make(chan struct{})}
	s.queue = append(s.queue, p)
	s.mu.Unlock()

	logrus.WithField("queued", s.Queued()).Debug("htpasswd: lockfile present, credential queued")
	return s.await(ctx, p)
}

// Omit removes the credential line of the given email and token.
// Lines queued during the compaction are written out along with the others.
func (s *Store) Omit(ctx context.Context, email, token string) error {
	removed, err := s.compact(ctx, func(line string) bool {
		return Matches(line, email, token)
	})
	if err != nil {
		return err
	}

	if !removed {
		logrus.Debug("htpasswd: no credential line matched")
	}
	return nil
}

// Compact rewrites the credential file and flushes queued lines.
func (s *Store) Compact(ctx context.Context) error {
	_, err := s.compact(ctx, nil)
	return err
}

// Queued returns the number of lines waiting for a compaction.
func (s *Store) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Lines returns the current lines of the credential file.
func (s *Store) Lines() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Contains returns true if a line exists for the given token.
func (s *Store) Contains(token string) (bool, error) {
	lines, err := s.Lines()
	if err != nil {
		return false, err
	}

	for _, line := range lines {
		if t, _, ok := Parse(line); ok && t == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) await(ctx context.Context, p *pending) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return nil
		case <-ticker.C:
			if s.locked() {
				continue
			}

			// The lock holder is gone without taking our line.
			if err := s.Compact(ctx); err != nil && errors.Cause(err) != ErrTimeout {
				logrus.WithError(err).Warn("htpasswd: could not flush queued credentials")
			}
		case <-ctx.Done():
			if !s.dequeue(p) {
				// Written by a compaction in the meantime.
				return nil
			}

			logrus.WithFields(s.lockFields()).Warn("htpasswd: timed out creating credential")
			if ctx.Err() == context.DeadlineExceeded {
				return ErrTimeout
			}
			return ctx.Err()
		}
	}
}

// compact acquires the lockfile, writes every line except the first one
// matched by omit, then the queued lines, and renames the lockfile over the
// credential file.
func (s *Store) compact(ctx context.Context, omit func(string) bool) (removed bool, err error) {
	lock, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}

	defer func() {
		if err != nil {
			lock.Close()
			os.Remove(s.cfg.Lockfile)
		}
	}()

	// Appends are queued from here since the lockfile exists.
	lines, err := s.read()
	if err != nil {
		return false, err
	}
	if s.afterRead != nil {
		s.afterRead()
	}

	w := bufio.NewWriter(lock)
	for _, line := range lines {
		if !removed && omit != nil && omit(line) {
			removed = true
			continue
		}
		if _, err = w.WriteString(line); err != nil {
			return false, errors.Wrap(err, "could not write lockfile")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queue
	for _, p := range queue {
		if _, err = w.WriteString(p.line); err != nil {
			return false, errors.Wrap(err, "could not write lockfile")
		}
	}

	if err = w.Flush(); err != nil {
		return false, errors.Wrap(err, "could not flush lockfile")
	}
	if err = lock.Sync(); err != nil {
		return false, errors.Wrap(err, "could not sync lockfile")
	}
	if err = lock.Close(); err != nil {
		return false, errors.Wrap(err, "could not close lockfile")
	}
	if err = os.Rename(s.cfg.Lockfile, s.cfg.Path); err != nil {
		return false, errors.Wrap(err, "could not replace credential file")
	}

	s.queue = nil
	for _, p := range queue {
		close(p.done)
	}

	logrus.WithFields(logrus.Fields{
		"lines":   len(lines),
		"flushed": len(queue),
		"removed": removed,
	}).Debug("htpasswd: compaction done")
	return removed, nil
}

// acquire creates the lockfile, waiting RetryInterval between attempts while
// another writer holds it.
func (s *Store) acquire(ctx context.Context) (*os.File, error) {
	var lock *os.File

	b := retry.WithMaxDuration(s.cfg.Timeout, retry.NewConstant(s.cfg.RetryInterval))
	err := retry.Do(ctx, b, func(_ context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		f, err := os.OpenFile(s.cfg.Lockfile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			return retry.RetryableError(ErrTimeout)
		}
		if err != nil {
			return errors.Wrap(err, "could not create lockfile")
		}

		lock = f
		return nil
	})

	if err == context.DeadlineExceeded {
		err = ErrTimeout
	}
	if err == ErrTimeout {
		logrus.WithFields(s.lockFields()).Warn("htpasswd: timed out waiting for lockfile")
	}
	return lock, err
}

// lockFields describes the lockfile in timeout warnings.
// A lockfile much older than Timeout was left by a crashed writer and must be removed by hand.
func (s *Store) lockFields() logrus.Fields {
	fields := logrus.Fields{"lockfile": s.cfg.Lockfile}
	if fi, err := os.Stat(s.cfg.Lockfile); err == nil {
		fields["lockfile_mtime"] = fi.ModTime().UTC().Format(time.RFC3339)
		fields["lockfile_age"] = time.Since(fi.ModTime()).Round(time.Second).String()
	}
	return fields
}

func (s *Store) dequeue(p *pending) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, q := range s.queue {
		if q == p {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) locked() bool {
	_, err := os.Stat(s.cfg.Lockfile)
	return err == nil
}

func (s *Store) write(line string) error {
	f, err := os.OpenFile(s.cfg.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "could not open credential file")
	}

	if _, err = f.WriteString(line); err != nil {
		f.Close()
		return errors.Wrap(err, "could not append credential")
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "could not sync credential file")
	}
	return errors.Wrap(f.Close(), "could not close credential file")
}

// read reads the credential file; a missing file has no lines.
func (s *Store) read() ([]string, error) {
	f, err := os.Open(s.cfg.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not open credential file")
	}
	defer f.Close()

	var lines []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			if line[len(line)-1] != '\n' {
				line += "\n"
			}
			lines = append(lines, line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "could not read credential file")
		}
	}
}
