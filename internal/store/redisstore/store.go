package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches synthesized audio payloads keyed by a digest of the
// spoken text, so repeated "ouvir" taps on the same reply never hit
// the speech model twice.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, ttl: ttl}
}

func audioKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "coach:audio:" + hex.EncodeToString(sum[:])
}

// GetAudio returns the cached base64 payload for text, or "" on miss.
func (s *Store) GetAudio(ctx context.Context, text string) (string, error) {
	v, err := s.rdb.Get(ctx, audioKey(text)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *Store) SetAudio(ctx context.Context, text, payload string) error {
	return s.rdb.Set(ctx, audioKey(text), payload, s.ttl).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
