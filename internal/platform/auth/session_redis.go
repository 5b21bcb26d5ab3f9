package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	claimsKeyPrefix  = "crm:session:claims:"
	revokedKeyPrefix = "crm:session:revoked:"
	cutoffKeyPrefix  = "crm:session:cutoff:"
)

// RedisStore is a SessionStore shared by every server instance.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func claimsKey(dentistID uuid.UUID) string { return claimsKeyPrefix + dentistID.String() }
func revokedKey(jti string) string         { return revokedKeyPrefix + jti }
func cutoffKey(dentistID uuid.UUID) string { return cutoffKeyPrefix + dentistID.String() }

func (s *RedisStore) Claims(ctx context.Context, dentistID uuid.UUID) (*AppMetadata, error) {
	raw, err := s.client.Get(ctx, claimsKey(dentistID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}

	var meta AppMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return &meta, nil
}

func (s *RedisStore) SetOnboarded(ctx context.Context, dentistID uuid.UUID, ttl time.Duration) error {
	raw, err := json.Marshal(AppMetadata{OnboardingStatus: true})
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	if err := s.client.Set(ctx, claimsKey(dentistID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set claims: %w", err)
	}
	return nil
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired; the token can no longer be used anyway.
		return nil
	}
	if err := s.client.Set(ctx, revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) RevokeSessions(ctx context.Context, dentistID uuid.UUID, cutoff time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, cutoffKey(dentistID), cutoff.UnixNano(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

func (s *RedisStore) SessionsRevokedAt(ctx context.Context, dentistID uuid.UUID) (time.Time, error) {
	ns, err := s.client.Get(ctx, cutoffKey(dentistID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get session cutoff: %w", err)
	}
	return time.Unix(0, ns), nil
}
