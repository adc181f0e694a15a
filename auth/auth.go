// Package auth signs users up and in with email and password and keeps
// their session in a cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bug_stomper/store"
)

const (
	CookieName        = "bs_session"
	MinPasswordLength = 6
	DefaultSessionTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUnauthenticated    = errors.New("you must be signed in")
	ErrPasswordTooShort   = fmt.Errorf("password should be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidEmail       = errors.New("a valid email address is required")
)

// UserStore is the persistence the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*store.User, error)
	UserByEmail(ctx context.Context, email string) (*store.User, error)
	CreateSession(ctx context.Context, token, userID string, expires time.Time) error
	SessionUser(ctx context.Context, token string) (*store.User, error)
	DeleteSession(ctx context.Context, token string) error
}

type Options struct {
	TTL time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

type Service struct {
	users UserStore
	opts  Options
	log   *zap.Logger
	now   func() time.Time
}

func NewService(users UserStore, opts Options, log *zap.Logger) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, opts: opts, log: log, now: time.Now}
}

// SignUp registers a new account.
func (s *Service) SignUp(ctx context.Context, email, password, confirm string) (*store.User, error) {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}
	s.log.Info("user signed up", zap.String("user_id", u.ID))
	return u, nil
}

// SignIn checks the credentials, opens a session and sets its cookie on w.
func (s *Service) SignIn(ctx context.Context, w http.ResponseWriter, email, password string) (*store.User, error) {
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	expires := s.now().Add(s.opts.TTL)
	if err := s.users.CreateSession(ctx, token, u.ID, expires); err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.Debug("user signed in", zap.String("user_id", u.ID))
	return u, nil
}

// SignOut ends the request's session, if any, and clears the cookie.
func (s *Service) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.Secure,
	})
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	return s.users.DeleteSession(ctx, c.Value)
}

// CurrentUser returns the signed-in user of r or ErrUnauthenticated.
func (s *Service) CurrentUser(r *http.Request) (*store.User, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.SessionUser(r.Context(), c.Value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
