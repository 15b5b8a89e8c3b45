package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micro-twitter/storage"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(storage.NewInMemoryStorage(), []byte("test-secret"))
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.Signup(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, u.Id)
	assert.NotEqual(t, "hunter22", u.Password, "password must be stored hashed")

	token, err := svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	id, err := svc.verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.Id, id)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Signup(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Signup(ctx, "", "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Signup(ctx, "alice", "alice@example.com", "pw123456")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "alice", "elsewhere@example.com", "pw123456")
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestAuthenticateMiddleware(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	u, err := svc.Signup(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)

	var seenCaller string
	handler := svc.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCaller, _ = CallerId(r.Context())
	}))

	// No header: 401.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unverifiable token: 403.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Valid token: caller id lands in the request context.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.Id, seenCaller)
}
