package session_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/infrastructure/aead"
	"github.com/fastygo/powerpanel/repository"
	"github.com/fastygo/powerpanel/repository/memory"
	"github.com/fastygo/powerpanel/usecase/session"
)

const (
	testTab  = "tab-1"
	baseName = "my_session_secret"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type env struct {
	uc      *session.UseCase
	storage *memory.SessionStorage
	cipher  *aead.Service
	clock   *clock
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cipher, err := aead.New(aead.AESGCM, nil)
	require.NoError(t, err)

	c := &clock{now: time.Date(2024, 5, 24, 17, 20, 48, 0, time.UTC)}
	storage := memory.NewSessionStorage(baseName)

	return &env{
		uc:      session.New(cipher, storage, session.DefaultTTL, zaptest.NewLogger(t), session.WithClock(c.Now)),
		storage: storage,
		cipher:  cipher,
		clock:   c,
	}
}

func (e *env) decrypt(t *testing.T, m domain.CipherMaterial) domain.SessionRecord {
	t.Helper()

	ct, err := base64.StdEncoding.DecodeString(m.Ciphertext)
	require.NoError(t, err)
	key, err := base64.StdEncoding.DecodeString(m.Key)
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(m.Nonce)
	require.NoError(t, err)

	plaintext, err := e.cipher.Decrypt(ct, key, nonce)
	require.NoError(t, err)

	var record domain.SessionRecord
	require.NoError(t, json.Unmarshal(plaintext, &record))
	return record
}

func (e *env) material(t *testing.T) domain.CipherMaterial {
	t.Helper()

	m, err := e.storage.Scope(testTab).Read(context.Background())
	require.NoError(t, err)
	return m
}

func TestUseCase_Issue(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	token, err := e.uc.Issue(ctx, testTab)
	require.NoError(t, err)

	m := e.material(t)
	assert.Equal(t, m.Ciphertext, token)

	record := e.decrypt(t, m)
	assert.NotEmpty(t, record.Secret)
	assert.Equal(t, e.clock.now.Add(10*time.Minute).UnixMilli(), record.Expiry)

	assert.True(t, e.uc.IsValid(ctx, testTab))
}

func TestUseCase_IsValid_expiryBoundary(t *testing.T) {
	testCases := []struct {
		name      string
		elapsed   time.Duration
		wantValid bool
	}{{
		name:      "fresh",
		elapsed:   0,
		wantValid: true,
	}, {
		name:      "before_expiry",
		elapsed:   9*time.Minute + 59*time.Second,
		wantValid: true,
	}, {
		name:      "at_expiry",
		elapsed:   10 * time.Minute,
		wantValid: true,
	}, {
		name:      "after_expiry",
		elapsed:   10*time.Minute + time.Second,
		wantValid: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()

			_, err := e.uc.Issue(ctx, testTab)
			require.NoError(t, err)

			e.clock.Advance(tc.elapsed)
			assert.Equal(t, tc.wantValid, e.uc.IsValid(ctx, testTab))

			_, err = e.storage.Scope(testTab).Read(ctx)
			if tc.wantValid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrMissingSession)
				assert.Zero(t, e.storage.Area(testTab).Len())
			}
		})
	}
}

func TestUseCase_IsValid_tamperedCiphertext(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.uc.Issue(ctx, testTab)
	require.NoError(t, err)

	original := e.material(t)
	raw, err := base64.StdEncoding.DecodeString(original.Ciphertext)
	require.NoError(t, err)

	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0xFF

		m := original
		m.Ciphertext = base64.StdEncoding.EncodeToString(tampered)
		require.NoError(t, e.storage.Scope(testTab).Put(ctx, m))

		require.NotPanics(t, func() {
			assert.False(t, e.uc.IsValid(ctx, testTab), "byte %d", i)
		})

		// A crypto failure is not a conclusive expiry, the store is kept.
		assert.Equal(t, m, e.material(t))
	}
}

func TestUseCase_IsValid_failClosed(t *testing.T) {
	testCases := []struct {
		mutate func(a *memory.Area)
		name   string
	}{{
		mutate: func(a *memory.Area) { a.RemoveItem(baseName + "_key") },
		name:   "missing_key",
	}, {
		mutate: func(a *memory.Area) { a.RemoveItem(baseName + "_iv") },
		name:   "missing_nonce",
	}, {
		mutate: func(a *memory.Area) { a.RemoveItem(baseName) },
		name:   "missing_ciphertext",
	}, {
		mutate: func(a *memory.Area) { a.SetItem(baseName+"_key", "not base64!") },
		name:   "undecodable_key",
	}, {
		mutate: func(a *memory.Area) { a.SetItem(baseName+"_iv", base64.StdEncoding.EncodeToString([]byte("short"))) },
		name:   "short_nonce",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()

			_, err := e.uc.Issue(ctx, testTab)
			require.NoError(t, err)

			tc.mutate(e.storage.Area(testTab))

			assert.False(t, e.uc.IsValid(ctx, testTab))
			assert.True(t, e.uc.NeedsLogout(ctx, testTab))

			_, ok := e.uc.ExpiryTimestamp(ctx, testTab)
			assert.False(t, ok)
		})
	}
}

func TestUseCase_IsValid_malformedRecord(t *testing.T) {
	payloads := []string{
		`not json`,
		`{"secret":"","expiry":1716571248373}`,
		`{"secret":"abc"}`,
		`{"secret":"abc","expiry":"tomorrow"}`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()

			ct, key, nonce, err := e.cipher.Encrypt([]byte(payload))
			require.NoError(t, err)

			require.NoError(t, e.storage.Scope(testTab).Put(ctx, domain.CipherMaterial{
				Ciphertext: base64.StdEncoding.EncodeToString(ct),
				Key:        base64.StdEncoding.EncodeToString(key),
				Nonce:      base64.StdEncoding.EncodeToString(nonce),
			}))

			assert.False(t, e.uc.IsValid(ctx, testTab))
			assert.True(t, e.uc.NeedsLogout(ctx, testTab))
			assert.Equal(t, 3, e.storage.Area(testTab).Len())
		})
	}
}

func TestUseCase_Issue_overwrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.uc.Issue(ctx, testTab)
	require.NoError(t, err)
	firstMaterial := e.material(t)

	second, err := e.uc.Issue(ctx, testTab)
	require.NoError(t, err)
	secondMaterial := e.material(t)

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, secondMaterial.Ciphertext)
	assert.NotEqual(t, firstMaterial.Key, secondMaterial.Key)
	assert.NotEqual(t, e.decrypt(t, firstMaterial).Secret, e.decrypt(t, secondMaterial).Secret)

	// Only the latest triple is held: the first ciphertext cannot be opened
	// with what the store now contains.
	m := secondMaterial
	m.Ciphertext = firstMaterial.Ciphertext
	require.NoError(t, e.storage.Scope(testTab).Put(ctx, m))
	assert.False(t, e.uc.IsValid(ctx, testTab))
}

func TestUseCase_NeedsLogout_polarity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.True(t, e.uc.NeedsLogout(ctx, testTab), "no session")

	_, err := e.uc.Issue(ctx, testTab)
	require.NoError(t, err)
	assert.False(t, e.uc.NeedsLogout(ctx, testTab), "fresh session")

	e.clock.Advance(10 * time.Minute)
	assert.True(t, e.uc.NeedsLogout(ctx, testTab), "expiry reached")

	// The oracle never clears the store.
	assert.Equal(t, 3, e.storage.Area(testTab).Len())

	expiry, ok := e.uc.ExpiryTimestamp(ctx, testTab)
	require.True(t, ok)
	assert.Equal(t, e.clock.now.UnixMilli(), expiry)
}

func TestUseCase_tabIsolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.uc.Issue(ctx, "a")
	require.NoError(t, err)

	assert.True(t, e.uc.IsValid(ctx, "a"))
	assert.False(t, e.uc.IsValid(ctx, "b"))

	require.NoError(t, e.uc.Logout(ctx, "a"))
	assert.False(t, e.uc.IsValid(ctx, "a"))
}

func TestUseCase_Status(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.Equal(t, domain.SessionStatus{NeedsLogout: true}, e.uc.Status(ctx, testTab))

	_, err := e.uc.Issue(ctx, testTab)
	require.NoError(t, err)

	status := e.uc.Status(ctx, testTab)
	assert.True(t, status.Authenticated)
	assert.False(t, status.NeedsLogout)
	require.NotNil(t, status.ExpiresAt)
	assert.True(t, status.ExpiresAt.Equal(e.clock.now.Add(10*time.Minute)))
}

type brokenCipher struct{}

func (brokenCipher) Encrypt([]byte) ([]byte, []byte, []byte, error) {
	return nil, nil, nil, errors.New("no entropy")
}

func (brokenCipher) Decrypt([]byte, []byte, []byte) ([]byte, error) {
	return nil, errors.New("platform failure")
}

type brokenStorage struct{}

func (brokenStorage) Scope(string) repository.SessionStore { return brokenStore{} }

type brokenStore struct{}

func (brokenStore) Put(context.Context, domain.CipherMaterial) error {
	return errors.New("quota exceeded")
}

func (brokenStore) Read(context.Context) (domain.CipherMaterial, error) {
	return domain.CipherMaterial{}, errors.New("storage offline")
}

func (brokenStore) Clear(context.Context) error { return nil }

func TestUseCase_collaboratorFailures(t *testing.T) {
	ctx := context.Background()

	uc := session.New(brokenCipher{}, memory.NewSessionStorage(baseName), 0, nil)
	assert.Equal(t, session.DefaultTTL, uc.TTL())

	_, err := uc.Issue(ctx, testTab)
	assert.ErrorContains(t, err, "no entropy")

	cipher, err := aead.New(aead.AESGCM, nil)
	require.NoError(t, err)

	uc = session.New(cipher, brokenStorage{}, 0, nil)
	_, err = uc.Issue(ctx, testTab)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.False(t, uc.IsValid(ctx, testTab))
	assert.True(t, uc.NeedsLogout(ctx, testTab))
}
