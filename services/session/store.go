// Package session stores per-call conversation state in Redis with a
// sliding inactivity TTL. Both the streaming socket bridge and the webhook
// ingress read and write the same session shape through this store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cabgo/models"
	"cabgo/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by Update when the session has expired or
	// been deleted. Callers on async paths treat it as benign.
	ErrNotFound = errors.New("session not found")

	// ErrStoreFull is returned by Create when the active session ceiling
	// has been reached. New calls are rejected rather than admitted.
	ErrStoreFull = errors.New("active session limit reached")
)

// Store is the contract shared by all call ingress paths. A backing-store
// outage must never crash a live call: reads degrade to absent, writes to
// no-ops, with the error reported on the store's error channel.
type Store interface {
	Create(ctx context.Context, sess *models.CallSession) error
	Get(ctx context.Context, id string) (*models.CallSession, error)
	Update(ctx context.Context, sess *models.CallSession) error
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context, pred func(*models.CallSession) bool) ([]*models.CallSession, error)
}

// RedisStore implements Store on a Redis client. Serialization is per-key
// only; no global lock is held across calls.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	maxActive int
	errs      chan<- error
}

// NewRedisStore returns a Store bound to client. Every write resets the
// inactivity TTL. maxActive <= 0 disables the session ceiling. errs may be
// nil; backing-store failures are then only logged.
func NewRedisStore(client *redis.Client, ttl time.Duration, maxActive int, errs chan<- error) *RedisStore {
	if ttl <= 0 {
		ttl = utils.DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl, maxActive: maxActive, errs: errs}
}

func (s *RedisStore) key(id string) string {
	return utils.SessionKeyPrefix + id
}

// report surfaces a backing-store error without blocking the audio path.
func (s *RedisStore) report(err error) {
	utils.GetLogger().Warn("session store error", zap.Error(err))
	if s.errs == nil {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

// Create stores a new session, rejecting it when the active ceiling is hit.
func (s *RedisStore) Create(ctx context.Context, sess *models.CallSession) error {
	if s.maxActive > 0 {
		n, err := s.countActive(ctx)
		if err != nil {
			s.report(err)
		} else if n >= s.maxActive {
			return ErrStoreFull
		}
	}

	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sess.SessionID), b, s.ttl).Err(); err != nil {
		s.report(err)
		return nil
	}
	return nil
}

// Get returns (nil, nil) when the session is absent or the backing store
// is unreachable.
func (s *RedisStore) Get(ctx context.Context, id string) (*models.CallSession, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.report(err)
		return nil, nil
	}
	var sess models.CallSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Update writes the session back only if it still exists, so results
// arriving after deletion are dropped instead of resurrecting the key.
// The write resets the TTL clock.
func (s *RedisStore) Update(ctx context.Context, sess *models.CallSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.key(sess.SessionID), b, s.ttl).Result()
	if err != nil {
		s.report(err)
		return nil
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete removes the session. Deleting an absent session is a no-op.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		s.report(err)
	}
	return nil
}

// ListActive returns all live sessions matching pred (nil matches all).
func (s *RedisStore) ListActive(ctx context.Context, pred func(*models.CallSession) bool) ([]*models.CallSession, error) {
	var sessions []*models.CallSession
	iter := s.client.Scan(ctx, 0, utils.SessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			s.report(err)
			continue
		}
		var sess models.CallSession
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			continue
		}
		if pred == nil || pred(&sess) {
			sessions = append(sessions, &sess)
		}
	}
	if err := iter.Err(); err != nil {
		s.report(err)
	}
	return sessions, nil
}

func (s *RedisStore) countActive(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, utils.SessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}
