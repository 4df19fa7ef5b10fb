package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/repository"
)

type sessionStorage struct {
	client   redislib.UniversalClient
	prefix   string
	baseName string
	idleTTL  time.Duration
}

// NewSessionStorage creates a Redis-backed tab storage. Every write refreshes
// idleTTL on the tab's keys so abandoned tabs disappear on their own.
func NewSessionStorage(client redislib.UniversalClient, baseName string, idleTTL time.Duration) repository.SessionStorage {
	if idleTTL <= 0 {
		idleTTL = 12 * time.Hour
	}
	return &sessionStorage{
		client:   client,
		prefix:   "tab:",
		baseName: baseName,
		idleTTL:  idleTTL,
	}
}

func (s *sessionStorage) Scope(tabID string) repository.SessionStore {
	ct, key, nonce := repository.SlotNames(s.baseName)
	return &sessionStore{
		client:        s.client,
		ttl:           s.idleTTL,
		ciphertextKey: s.key(tabID, ct),
		keyKey:        s.key(tabID, key),
		nonceKey:      s.key(tabID, nonce),
	}
}

func (s *sessionStorage) key(tabID, slot string) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, tabID, slot)
}

type sessionStore struct {
	client        redislib.UniversalClient
	ttl           time.Duration
	ciphertextKey string
	keyKey        string
	nonceKey      string
}

func (s *sessionStore) Put(ctx context.Context, material domain.CipherMaterial) error {
	if !material.Complete() {
		return domain.ErrInvalidPayload
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Set(ctx, s.ciphertextKey, material.Ciphertext, s.ttl)
		pipe.Set(ctx, s.keyKey, material.Key, s.ttl)
		pipe.Set(ctx, s.nonceKey, material.Nonce, s.ttl)
		return nil
	})
	return err
}

func (s *sessionStore) Read(ctx context.Context) (domain.CipherMaterial, error) {
	values, err := s.client.MGet(ctx, s.ciphertextKey, s.keyKey, s.nonceKey).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return domain.CipherMaterial{}, domain.ErrMissingSession
		}
		return domain.CipherMaterial{}, err
	}

	material := domain.CipherMaterial{
		Ciphertext: stringValue(values, 0),
		Key:        stringValue(values, 1),
		Nonce:      stringValue(values, 2),
	}
	if !material.Complete() {
		return domain.CipherMaterial{}, domain.ErrMissingSession
	}
	return material, nil
}

func (s *sessionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.ciphertextKey, s.keyKey, s.nonceKey).Err()
}

func stringValue(values []interface{}, i int) string {
	if i >= len(values) {
		return ""
	}
	v, _ := values[i].(string)
	return v
}
