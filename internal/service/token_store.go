package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type TokenKind string

const (
	AccessTokenKind  TokenKind = "access_token"
	RefreshTokenKind TokenKind = "refresh_token"

	scanBatchSize = 100
)

// TokenStore is the whitelist of issued tokens. A token whose id is not in
// the store is treated as revoked.
type TokenStore interface {
	Store(ctx context.Context, kind TokenKind, userID int64, tokenID string, ttl time.Duration) error
	Exists(ctx context.Context, kind TokenKind, userID int64, tokenID string) (bool, error)
	Revoke(ctx context.Context, kind TokenKind, userID int64, tokenID string) error
	RevokeAll(ctx context.Context, userID int64) error
}

type redisTokenStore struct {
	redisClient *redis.Client
	log         *logrus.Logger
}

func NewRedisTokenStore(redisClient *redis.Client, log *logrus.Logger) TokenStore {
	return &redisTokenStore{
		redisClient: redisClient,
		log:         log,
	}
}

func TokenKey(kind TokenKind, userID int64, tokenID string) string {
	return fmt.Sprintf("%s:%d:%s", kind, userID, tokenID)
}

func (s *redisTokenStore) Store(ctx context.Context, kind TokenKind, userID int64, tokenID string, ttl time.Duration) error {
	if err := s.redisClient.Set(ctx, TokenKey(kind, userID, tokenID), "valid", ttl).Err(); err != nil {
		s.log.Warnf("Failed to store %s in Redis: %+v", kind, err)
		return err
	}
	return nil
}

func (s *redisTokenStore) Exists(ctx context.Context, kind TokenKind, userID int64, tokenID string) (bool, error) {
	n, err := s.redisClient.Exists(ctx, TokenKey(kind, userID, tokenID)).Result()
	if err != nil {
		s.log.Warnf("Failed to check %s in Redis: %+v", kind, err)
		return false, err
	}
	return n > 0, nil
}

func (s *redisTokenStore) Revoke(ctx context.Context, kind TokenKind, userID int64, tokenID string) error {
	if err := s.redisClient.Del(ctx, TokenKey(kind, userID, tokenID)).Err(); err != nil {
		s.log.Warnf("Failed to delete %s: %+v", kind, err)
		return err
	}
	return nil
}

// RevokeAll drops every token issued to userID, for example when the
// account is deleted.
func (s *redisTokenStore) RevokeAll(ctx context.Context, userID int64) error {
	for _, kind := range []TokenKind{AccessTokenKind, RefreshTokenKind} {
		pattern := fmt.Sprintf("%s:%d:*", kind, userID)
		var cursor uint64
		for {
			keys, next, err := s.redisClient.Scan(ctx, cursor, pattern, scanBatchSize).Result()
			if err != nil {
				s.log.Warnf("Failed to scan %s keys: %+v", kind, err)
				return err
			}
			if len(keys) > 0 {
				if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
					s.log.Warnf("Failed to delete %s keys: %+v", kind, err)
					return err
				}
			}
			if next == 0 {
				break
			}
			cursor = next
		}
	}
	return nil
}
