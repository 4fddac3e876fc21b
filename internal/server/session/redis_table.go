package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the default key prefix of the RedisTable.
const DefaultRedisPrefix = "focal:session:"

// RedisTable is a Table shared by every process connected to the same Redis.
// Pending sessions expire through the key TTL.
type RedisTable struct {
	client        redis.UniversalClient
	prefix        string
	unverifiedTTL time.Duration
}

// NewRedisTable returns a RedisTable using the given client.
func NewRedisTable(client redis.UniversalClient, prefix string, unverifiedTTL time.Duration) *RedisTable {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if unverifiedTTL <= 0 {
		unverifiedTTL = DefaultUnverifiedTTL
	}

	return &RedisTable{
		client:        client,
		prefix:        prefix,
		unverifiedTTL: unverifiedTTL,
	}
}

// PutUnverified implements Table.
func (t *RedisTable) PutUnverified(ctx context.Context, s *Session) error {
	return t.set(ctx, t.unverifiedKey(s.Token), s, t.unverifiedTTL)
}

// TakeUnverified implements Table.
func (t *RedisTable) TakeUnverified(ctx context.Context, token string) (*Session, error) {
	data, err := t.client.GetDel(ctx, t.unverifiedKey(token)).Bytes()
	return t.decode(data, err)
}

// PutVerified implements Table.
func (t *RedisTable) PutVerified(ctx context.Context, s *Session) error {
	return t.set(ctx, t.verifiedKey(s.Token), s, 0)
}

// GetVerified implements Table.
func (t *RedisTable) GetVerified(ctx context.Context, token string) (*Session, error) {
	data, err := t.client.Get(ctx, t.verifiedKey(token)).Bytes()
	return t.decode(data, err)
}

// TouchVerified implements Table.
func (t *RedisTable) TouchVerified(ctx context.Context, token string, at time.Time) error {
	s, err := t.GetVerified(ctx, token)
	if err != nil {
		return err
	}
	s.LastSeenAt = at

	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "could not encode session")
	}
	// SET XX never recreates a session deleted in the meantime.
	err = t.client.SetXX(ctx, t.verifiedKey(token), data, redis.KeepTTL).Err()
	return errors.Wrap(err, "could not touch session")
}

// DeleteVerified implements Table.
func (t *RedisTable) DeleteVerified(ctx context.Context, token string) error {
	return errors.Wrap(t.client.Del(ctx, t.verifiedKey(token)).Err(), "could not delete session")
}

// ReapUnverified implements Table.
// Nothing to do, Redis expires pending sessions by itself.
func (t *RedisTable) ReapUnverified(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Close implements Table.
func (t *RedisTable) Close() error {
	return t.client.Close()
}

func (t *RedisTable) set(ctx context.Context, key string, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "could not encode session")
	}
	return errors.Wrap(t.client.Set(ctx, key, data, ttl).Err(), "could not save session")
}

func (t *RedisTable) decode(data []byte, err error) (*Session, error) {
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not get session")
	}

	var s Session
	if err = json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "could not decode session")
	}
	return &s, nil
}

func (t *RedisTable) unverifiedKey(token string) string {
	return t.prefix + "unverified:" + token
}

func (t *RedisTable) verifiedKey(token string) string {
	return t.prefix + "verified:" + token
}
