package session

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/focalpics/focal/internal/mailer"
	"github.com/focalpics/focal/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultUnverifiedTTL is the default for Config.UnverifiedTTL.
	DefaultUnverifiedTTL = 30 * time.Minute
	// DefaultReapInterval is the default for Config.ReapInterval.
	DefaultReapInterval = time.Minute
	// DefaultMagicLinkPath is the default for Config.MagicLinkPath.
	DefaultMagicLinkPath = "/magic"
)

var (
	// ErrInvalidEmail is returned when a sign-in is requested for a malformed email.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrSessionMismatch is returned when a bearer token's email does not own the session.
	ErrSessionMismatch = errors.New("session does not belong to the given email")
)

type (
	// A Manager manages sessions.
	Manager interface {
		// CreateSession requests a sign-in for the given email and mails its magic link.
		// No token is returned, it can only be obtained through the mail.
		CreateSession(ctx context.Context, email string) error
		// VerifySession consumes a pending session token and returns the bearer token
		// of the new active session.
		VerifySession(ctx context.Context, token string) (string, error)
		// GetSession returns the active session of the given token.
		GetSession(ctx context.Context, token string) (*Session, error)
		// SessionFromBearer returns the active session of the given bearer token.
		SessionFromBearer(ctx context.Context, bearer string) (*Session, error)
		// DeleteSession terminates the active session of the given bearer token.
		DeleteSession(ctx context.Context, bearer string) error
		// Close stops the reaper and closes the table.
		Close() error
	}

	// Credentials is the durable ledger of active session tokens.
	Credentials interface {
		Append(ctx context.Context, email, token string) error
		Omit(ctx context.Context, email, token string) error
	}

	// Accounts gives access to the account records matching session emails.
	Accounts interface {
		Save(m model.Model) error
		IsNotFound(err error) bool
		FindAccountByEmail(email string) (*model.Account, error)
	}

	// Config holds the Manager configuration.
	// A zero value is a valid configuration except for Origin.
	Config struct {
		// Origin of the magic links, e.g. https://focal.pics
		Origin string
		// MagicLinkPath is the path of the page consuming magic links.
		MagicLinkPath string
		// TokenLength of generated tokens.
		TokenLength int
		// UnverifiedTTL tells how long a magic link remains valid.
		UnverifiedTTL time.Duration
		// ReapInterval between two removals of expired pending sessions.
		// A negative value disables the reaper.
		ReapInterval time.Duration
	}

	manager struct {
		table       Table
		credentials Credentials
		mailer      mailer.Mailer
		accounts    Accounts
		cfg         Config

		cancel func()
		wg     sync.WaitGroup
	}
)

// NewManager returns a new manager.
// accounts may be nil, ban checks and email verification marks are then skipped.
func NewManager(table Table, credentials Credentials, m mailer.Mailer, accounts Accounts, cfg Config) Manager {
	if cfg.MagicLinkPath == "" {
		cfg.MagicLinkPath = DefaultMagicLinkPath
	}
	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}
	if cfg.UnverifiedTTL == 0 {
		cfg.UnverifiedTTL = DefaultUnverifiedTTL
	}
	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = DefaultReapInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &manager{
		table:       table,
		credentials: credentials,
		mailer:      m,
		accounts:    accounts,
		cfg:         cfg,
		cancel:      cancel,
	}

	if cfg.ReapInterval > 0 {
		mgr.wg.Add(1)
		go mgr.reap(ctx)
	}

	return mgr
}

func (m *manager) CreateSession(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return ErrInvalidEmail
	}

	log := logrus.WithField("email", email)
	now := time.Now()
	if m.isBanned(email, now) {
		log.Warn("session: sign-in requested for a banned account")
		return nil
	}

	token := SecureToken(m.cfg.TokenLength)
	err := m.mailer.SendMagicLink(ctx, mailer.MagicLink{
		To:         email,
		Link:       m.magicLink(token),
		Expiration: m.cfg.UnverifiedTTL,
	})
	if err != nil {
		return errors.Wrap(err, "could not send magic link")
	}

	// The pending session only exists once its link is sent.
	err = m.table.PutUnverified(ctx, &Session{
		Token:        token,
		AccountEmail: email,
		CreatedAt:    now,
		LastSeenAt:   now,
	})
	if err != nil {
		return errors.Wrap(err, "could not save pending session")
	}

	log.Info("session: sign-in requested")
	return nil
}

func (m *manager) VerifySession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}

	pending, err := m.table.TakeUnverified(ctx, token)
	if err != nil {
		return "", err
	}
	if m.isExpired(pending, time.Now()) {
		return "", ErrSessionNotFound
	}

	log := logrus.WithField("email", pending.AccountEmail)
	active := pending.clone()
	active.Token = SecureToken(m.cfg.TokenLength)

	if err = m.credentials.Append(ctx, active.AccountEmail, active.Token); err != nil {
		m.restore(ctx, pending)
		log.WithError(err).Error("session: could not record credential")
		return "", errors.Wrap(err, "could not record credential")
	}

	now := time.Now()
	active.VerifiedAt = &now
	active.LastSeenAt = now
	if err = m.table.PutVerified(ctx, active); err != nil {
		if oerr := m.credentials.Omit(ctx, active.AccountEmail, active.Token); oerr != nil {
			log.WithError(oerr).Error("session: could not revoke credential")
		}
		m.restore(ctx, pending)
		return "", errors.Wrap(err, "could not save session")
	}

	m.markVerified(active.AccountEmail, now)
	log.Info("session: verified")
	return EncodeBearer(active.AccountEmail, active.Token), nil
}

func (m *manager) GetSession(ctx context.Context, token string) (*Session, error) {
	return m.table.GetVerified(ctx, token)
}

func (m *manager) SessionFromBearer(ctx context.Context, bearer string) (*Session, error) {
	email, token, err := DecodeBearer(bearer)
	if err != nil {
		return nil, err
	}

	s, err := m.table.GetVerified(ctx, token)
	if err != nil {
		return nil, err
	}
	if !SecureCompare(s.AccountEmail, email) {
		return nil, ErrSessionMismatch
	}

	now := time.Now()
	if err = m.table.TouchVerified(ctx, token, now); err != nil {
		logrus.WithError(err).Debug("session: could not touch session")
	} else {
		s.LastSeenAt = now
	}
	return s, nil
}

func (m *manager) DeleteSession(ctx context.Context, bearer string) error {
	email, token, err := DecodeBearer(bearer)
	if err != nil {
		return err
	}

	s, err := m.table.GetVerified(ctx, token)
	if errors.Cause(err) == ErrSessionNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if !SecureCompare(s.AccountEmail, email) {
		return ErrSessionMismatch
	}

	if err = m.credentials.Omit(ctx, email, token); err != nil {
		return errors.Wrap(err, "could not revoke credential")
	}
	if err = m.table.DeleteVerified(ctx, token); err != nil {
		return err
	}

	logrus.WithField("email", email).Info("session: deleted")
	return nil
}

func (m *manager) Close() error {
	m.cancel()
	m.wg.Wait()
	return m.table.Close()
}

func (m *manager) magicLink(token string) string {
	return strings.TrimSuffix(m.cfg.Origin, "/") + m.cfg.MagicLinkPath + "?token=" + url.QueryEscape(token)
}

func (m *manager) isExpired(s *Session, now time.Time) bool {
	return s.CreatedAt.Add(m.cfg.UnverifiedTTL).Before(now)
}

// restore puts back a pending session whose verification failed.
func (m *manager) restore(ctx context.Context, pending *Session) {
	if err := m.table.PutUnverified(ctx, pending); err != nil {
		logrus.WithError(err).WithField("email", pending.AccountEmail).Error("session: could not restore pending session")
	}
}

func (m *manager) isBanned(email string, now time.Time) bool {
	if m.accounts == nil {
		return false
	}

	account, err := m.accounts.FindAccountByEmail(email)
	if err != nil {
		if !m.accounts.IsNotFound(err) {
			logrus.WithError(err).Error("session: could not get account")
		}
		return false
	}
	return account.IsBanned(now)
}

func (m *manager) markVerified(email string, now time.Time) {
	if m.accounts == nil {
		return
	}

	account, err := m.accounts.FindAccountByEmail(email)
	if err != nil {
		if !m.accounts.IsNotFound(err) {
			logrus.WithError(err).Error("session: could not get account")
		}
		return
	}
	if account.EmailVerifiedAt != nil {
		return
	}

	account.EmailVerifiedAt = &now
	if err = m.accounts.Save(account); err != nil {
		logrus.WithError(err).Error("session: could not mark account email as verified")
	}
}

func (m *manager) reap(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.table.ReapUnverified(ctx, time.Now().Add(-m.cfg.UnverifiedTTL))
			if err != nil {
				logrus.WithError(err).Warn("session: could not reap pending sessions")
				continue
			}
			if n > 0 {
				logrus.WithField("count", n).Debug("session: expired pending sessions removed")
			}
		}
	}
}
