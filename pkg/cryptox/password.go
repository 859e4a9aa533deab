package cryptox

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Algorithm names a password hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultBcryptCost is used when HasherOptions.Cost is zero.
const DefaultBcryptCost = 12

var ErrUnknownAlgorithm = errors.New("cryptox: unknown password algorithm")

// HasherOptions configures NewHasher.
type HasherOptions struct {
	// Algorithm used for new digests. Verification accepts every supported
	// algorithm regardless of this setting.
	Algorithm Algorithm

	// Cost is the bcrypt work factor, clamped to bcrypt's allowed range.
	Cost int

	// Workers bounds how many hash operations run at once (default GOMAXPROCS).
	Workers int
}

// Hasher hashes and verifies passwords on a bounded pool of workers so a burst
// of logins can't starve the rest of the process of CPU.
type Hasher struct {
	algorithm Algorithm
	cost      int
	workers   *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
}

// NewHasher builds a Hasher from opts, filling in defaults.
func NewHasher(opts HasherOptions) (*Hasher, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmBcrypt
	}
	if opts.Algorithm != AlgorithmBcrypt && opts.Algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, opts.Algorithm)
	}

	cost := opts.Cost
	switch {
	case cost == 0:
		cost = DefaultBcryptCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Hasher{
		algorithm: opts.Algorithm,
		cost:      cost,
		workers:   semaphore.NewWeighted(int64(workers)),
	}, nil
}

func (h *Hasher) Algorithm() Algorithm { return h.algorithm }
func (h *Hasher) Cost() int            { return h.cost }

// Hash returns a salted digest of password using the configured algorithm.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	var (
		digest string
		err    error
	)
	if runErr := h.run(ctx, func() {
		digest, err = h.hash(password)
	}); runErr != nil {
		return "", runErr
	}
	return digest, err
}

// Verify reports whether password matches digest. Malformed or unknown digests
// never match, and neither does a cancelled context.
func (h *Hasher) Verify(ctx context.Context, password, digest string) bool {
	var ok bool
	if err := h.run(ctx, func() {
		ok = verify(password, digest)
	}); err != nil {
		return false
	}
	return ok
}

// DummyVerify burns the same work as a real Verify. Call it when the account
// doesn't exist so response timing doesn't reveal that.
func (h *Hasher) DummyVerify(ctx context.Context, password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.hash("rollcall-dummy-password")
	})
	_ = h.Verify(ctx, password, h.dummy)
}

func (h *Hasher) run(ctx context.Context, fn func()) error {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.workers.Release(1)

	fn()
	return nil
}

func (h *Hasher) hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2id(password)
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: bcrypt: %w", err)
	}
	return string(b), nil
}

// verify picks the algorithm from the digest prefix.
func verify(password, digest string) bool {
	switch {
	case isBcrypt(digest):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2id(password, digest)
	default:
		return false
	}
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
