// Package session holds short-lived QR scan sessions in redis. A session
// token proves a customer was physically present moments ago, which lets a
// redeem skip PIN verification. Keeping the state in redis (not an
// in-process map) keeps it valid across processes and bounded by TTL.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pointgrid/loyalty-core/pkg/logger"
	"github.com/pointgrid/loyalty-core/pkg/redis"
)

var ErrTokenCollision = errors.New("session token collision")

type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		TTL:       2 * time.Minute,
		KeyPrefix: "presence:",
	}
}

type Store struct {
	redis  redis.RedisAdapter
	config Config
}

func NewStore(redisAdapter redis.RedisAdapter, config Config) *Store {
	if config.TTL == 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Store{
		redis:  redisAdapter,
		config: config,
	}
}

// Issue creates a presence session for a merchant client right after a QR
// scan. The token expires on its own; nothing to clean up.
func (s *Store) Issue(ctx context.Context, merchantClientID int64) (string, error) {
	token := uuid.NewString()
	key := s.config.KeyPrefix + token
	value := []byte(fmt.Sprintf("%d", merchantClientID))

	ok, err := s.redis.SetNX(key, value, s.config.TTL)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrTokenCollision
	}

	logger.Debug("presence session issued",
		"merchant_client_id", merchantClientID,
		"ttl", s.config.TTL)
	return token, nil
}

// Consume redeems a session token exactly once. Returns the merchant client
// id it was issued for, or ok=false when the token is unknown or expired.
func (s *Store) Consume(ctx context.Context, token string) (int64, bool, error) {
	key := s.config.KeyPrefix + token

	value, err := s.redis.Get(key)
	if err != nil {
		if err == redis.NilError {
			return 0, false, nil
		}
		return 0, false, err
	}

	if err := s.redis.Del(key); err != nil {
		logger.Warn("failed to remove presence session", "error", err)
	}

	var id int64
	if _, err := fmt.Sscanf(string(value), "%d", &id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}
