package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"bug_stomper/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "auth.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st, Options{TTL: time.Hour, Cost: bcrypt.MinCost}, zaptest.NewLogger(t))
}

func TestSignUpValidation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	tests := []struct {
		name              string
		email, pw, pwConf string
		want              error
	}{
		{"bad email", "nobody", "secret1", "secret1", ErrInvalidEmail},
		{"short password", "a@example.com", "12345", "12345", ErrPasswordTooShort},
		{"mismatch", "a@example.com", "secret1", "secret2", ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SignUp(ctx, tt.email, tt.pw, tt.pwConf)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	u, err := s.SignUp(ctx, "a@example.com", "secret1", "secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = s.SignUp(ctx, "a@example.com", "secret1", "secret1")
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestSignInSetsSessionCookie(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	u, err := s.SignUp(ctx, "a@example.com", "secret1", "secret1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	_, err = s.SignIn(ctx, rec, "a@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.SignIn(ctx, rec, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	_, err = s.SignIn(ctx, rec, "a@example.com", "secret1")
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.NotEmpty(t, c.Value)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	cur, err := s.CurrentUser(req)
	require.NoError(t, err)
	assert.Equal(t, u.ID, cur.ID)

	rec = httptest.NewRecorder()
	require.NoError(t, s.SignOut(ctx, rec, req))
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
	_, err = s.CurrentUser(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCurrentUserWithoutCookie(t *testing.T) {
	s := newService(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := s.CurrentUser(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	_, err = s.CurrentUser(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, s.SignOut(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil)))
}
