package cryptox

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T, alg Algorithm) *Hasher {
	t.Helper()
	h, err := NewHasher(HasherOptions{Algorithm: alg, Cost: bcrypt.MinCost, Workers: 2})
	require.NoError(t, err)
	return h
}

func TestNewHasher(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		h, err := NewHasher(HasherOptions{})
		require.NoError(t, err)
		require.Equal(t, AlgorithmBcrypt, h.Algorithm())
		require.Equal(t, DefaultBcryptCost, h.Cost())
	})

	t.Run("cost is clamped", func(t *testing.T) {
		low, err := NewHasher(HasherOptions{Cost: 1})
		require.NoError(t, err)
		require.Equal(t, bcrypt.MinCost, low.Cost())

		high, err := NewHasher(HasherOptions{Cost: 99})
		require.NoError(t, err)
		require.Equal(t, bcrypt.MaxCost, high.Cost())
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := NewHasher(HasherOptions{Algorithm: "md5"})
		require.ErrorIs(t, err, ErrUnknownAlgorithm)
	})
}

func TestHashAndVerify(t *testing.T) {
	ctx := context.Background()

	passwords := []struct {
		name     string
		password string
	}{
		{"simple", "CorrectPass1!"},
		{"empty", ""},
		{"unicode", "пароль🔒密码"},
		{"whitespace", "   spaces   "},
	}

	for _, alg := range []Algorithm{AlgorithmBcrypt, AlgorithmArgon2id} {
		h := newTestHasher(t, alg)

		for _, tt := range passwords {
			t.Run(string(alg)+"/"+tt.name, func(t *testing.T) {
				digest, err := h.Hash(ctx, tt.password)
				require.NoError(t, err)
				require.NotEqual(t, tt.password, digest)

				require.True(t, h.Verify(ctx, tt.password, digest))
				require.False(t, h.Verify(ctx, tt.password+"x", digest))
			})
		}
	}
}

func TestHash_UniqueSalts(t *testing.T) {
	ctx := context.Background()

	for _, alg := range []Algorithm{AlgorithmBcrypt, AlgorithmArgon2id} {
		t.Run(string(alg), func(t *testing.T) {
			h := newTestHasher(t, alg)

			a, err := h.Hash(ctx, "samepassword")
			require.NoError(t, err)
			b, err := h.Hash(ctx, "samepassword")
			require.NoError(t, err)

			require.NotEqual(t, a, b)
			require.True(t, h.Verify(ctx, "samepassword", a))
			require.True(t, h.Verify(ctx, "samepassword", b))
		})
	}
}

func TestHash_Formats(t *testing.T) {
	ctx := context.Background()

	bc, err := newTestHasher(t, AlgorithmBcrypt).Hash(ctx, "pw")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(bc, "$2a$"), bc)

	ar, err := newTestHasher(t, AlgorithmArgon2id).Hash(ctx, "pw")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ar, "$argon2id$v=19$m=19456,t=2,p=1$"), ar)
	require.Len(t, strings.Split(ar, "$"), 6)
}

func TestVerify_CrossAlgorithm(t *testing.T) {
	ctx := context.Background()
	bcrypter := newTestHasher(t, AlgorithmBcrypt)
	argoner := newTestHasher(t, AlgorithmArgon2id)

	digest, err := argoner.Hash(ctx, "migrate-me")
	require.NoError(t, err)

	// Digests carry their own algorithm, so a bcrypt-configured hasher still
	// verifies stored argon2id digests.
	require.True(t, bcrypter.Verify(ctx, "migrate-me", digest))
}

func TestVerify_MalformedDigest(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t, AlgorithmBcrypt)

	tests := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"plaintext", "password"},
		{"truncated bcrypt", "$2b$12$abc"},
		{"unknown scheme", "$scrypt$ln=16,r=8,p=1$c2FsdA$aGFzaA"},
		{"argon missing parts", "$argon2id$v=19$m=19456"},
		{"argon bad params", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"argon zero params", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA"},
		{"argon bad salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA"},
		{"argon bad hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!"},
		{"argon wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, h.Verify(ctx, "password", tt.digest))
			})
		})
	}
}

func TestHash_TooLongForBcrypt(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)
	_, err := h.Hash(context.Background(), strings.Repeat("a", 100))
	require.Error(t, err)
}

func TestVerify_CancelledContext(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)
	digest, err := h.Hash(context.Background(), "pw")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Saturate the pool so Acquire has to wait and sees the cancellation.
	require.NoError(t, h.workers.Acquire(context.Background(), 2))
	defer h.workers.Release(2)

	require.False(t, h.Verify(ctx, "pw", digest))
	_, err = h.Hash(ctx, "pw")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHasher_Concurrent(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t, AlgorithmBcrypt)
	digest, err := h.Hash(ctx, "shared")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.Verify(ctx, "shared", digest)
		}(i)
	}
	wg.Wait()

	for _, ok := range results {
		require.True(t, ok)
	}
}

func TestDummyVerify(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)
	require.NotPanics(t, func() {
		h.DummyVerify(context.Background(), "whatever")
		h.DummyVerify(context.Background(), "again")
	})
	require.True(t, isBcrypt(h.dummy))
}
