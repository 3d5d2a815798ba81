// Package redis implements the otherus stores on a shared Redis
// instance. This is the production backend: every service replica talks
// to the same keyspace, and Redis gives us the per-key atomicity the
// auth flows rely on (SETNX for email binding, GETDEL for state
// consumption) plus native TTL expiry for OAuth state.
//
// Key layout:
//
//	user:{id}            JSON user record
//	email_to_id:{email}  user id string
//	users:all            SET of user ids
//	oauth_state:{state}  provider name, 600s TTL
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/other-realm/otherus"
)

const (
	userKeyPrefix  = "user:"
	emailKeyPrefix = "email_to_id:"
	stateKeyPrefix = "oauth_state:"
	allUsersKey    = "users:all"
)

// Store implements UserStore, IdentityStore and StateStore on Redis.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func userKey(id string) string     { return userKeyPrefix + id }
func emailKey(email string) string { return emailKeyPrefix + otherus.NormalizeEmail(email) }
func stateKey(state string) string { return stateKeyPrefix + state }

func (s *Store) CreateUser(ctx context.Context, user *otherus.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKey(user.ID), data, 0)
	pipe.SAdd(ctx, allUsersKey, user.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*otherus.User, error) {
	raw, err := s.client.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, otherus.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var user otherus.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", userID, err)
	}
	return &user, nil
}

func (s *Store) SaveUser(ctx context.Context, user *otherus.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	// XX: only overwrite an existing record.
	ok, err := s.client.SetXX(ctx, userKey(user.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if !ok {
		return otherus.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	deleted, err := s.client.Del(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if deleted == 0 {
		return otherus.ErrNotFound
	}
	if err := s.client.SRem(ctx, allUsersKey, userID).Err(); err != nil {
		return fmt.Errorf("remove user from index: %w", err)
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, allUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

func (s *Store) ResolveEmail(ctx context.Context, email string) (string, error) {
	id, err := s.client.Get(ctx, emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", otherus.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve email: %w", err)
	}
	return id, nil
}

func (s *Store) BindEmail(ctx context.Context, email, userID string) error {
	// SETNX makes the bind atomic: of two concurrent registrations with
	// the same email, exactly one wins.
	ok, err := s.client.SetNX(ctx, emailKey(email), userID, 0).Result()
	if err != nil {
		return fmt.Errorf("bind email: %w", err)
	}
	if !ok {
		return otherus.ErrDuplicateEmail
	}
	return nil
}

func (s *Store) UnbindEmail(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, emailKey(email)).Err(); err != nil {
		return fmt.Errorf("unbind email: %w", err)
	}
	return nil
}

func (s *Store) IssueState(ctx context.Context, state, provider string, ttl time.Duration) error {
	if err := s.client.SetEx(ctx, stateKey(state), provider, ttl).Err(); err != nil {
		return fmt.Errorf("issue state: %w", err)
	}
	return nil
}

func (s *Store) ConsumeState(ctx context.Context, state string) (string, error) {
	// GETDEL is the check-and-delete in one step: expired entries are
	// already gone (Redis TTL), and of two concurrent callbacks only
	// the first sees the value.
	provider, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", otherus.ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("consume state: %w", err)
	}
	return provider, nil
}
