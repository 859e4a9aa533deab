package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/revocation"
	"github.com/aussiebroadwan/rollcall/internal/auth/service"
	"github.com/aussiebroadwan/rollcall/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/rollcall/pkg/cryptox"
	"github.com/aussiebroadwan/rollcall/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Str0ng!Pass"

// clock is a settable time source shared by the codec under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	svc   *service.AuthService
	store *sqlite.Store
	reg   *revocation.Memory
	clock *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clk := &clock{t: time.Now().UTC().Truncate(time.Second)}
	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret: []byte("test-secret-test-secret-test-sec"),
		Now:    clk.Now,
	})
	require.NoError(t, err)

	hasher, err := cryptox.NewHasher(cryptox.HasherOptions{Cost: bcrypt.MinCost, Workers: 4})
	require.NoError(t, err)

	reg := revocation.NewMemory()
	return &harness{
		svc: &service.AuthService{
			Store:   st,
			Codec:   codec,
			Hasher:  hasher,
			Revoked: reg,
		},
		store: st,
		reg:   reg,
		clock: clk,
	}
}

func (h *harness) signup(t *testing.T, username, role string) {
	t.Helper()
	_, err := h.svc.Signup(context.Background(), service.SignupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err)
}
