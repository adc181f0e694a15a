package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Title     string `json:"title"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatarUrl"`
	LinkedIn  string `json:"linkedin"`
	GitHub    string `json:"github"`
	Instagram string `json:"instagram"`
}

// Author is the public face of a user attached to content.
type Author struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// usernameFromEmail derives the initial username from the local part of an
// email address.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	name := usernameStrip.ReplaceAllString(local, "")
	if name == "" {
		name = "user"
	}
	return name
}

// CreateUser inserts a user and a profile whose username is derived from
// the email. A numeric suffix is appended when the username is taken.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    fromStamp(s.stamp()),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	base := usernameFromEmail(email)
	username := base
	for i := 2; ; i++ {
		_, err = tx.ExecContext(ctx, `INSERT INTO profiles (id, username) VALUES (?, ?)`, u.ID, username)
		if !isUniqueViolation(err) {
			break
		}
		username = fmt.Sprintf("%s%d", base, i)
	}
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

const userColumns = `id, email, password_hash, full_name, created_at`

func scanUser(row *sql.Row) (*User, error) {
	var (
		u       User
		created int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromStamp(created)
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) UpdateFullName(ctx context.Context, userID, fullName string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET full_name = ? WHERE id = ?`, fullName, userID)
	if err != nil {
		return fmt.Errorf("update full name: %w", err)
	}
	return requireRow(res)
}

// CreateSession stores a login session for userID.
func (s *Store) CreateSession(ctx context.Context, token, userID string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expires.UnixNano())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionUser returns the user owning an unexpired session token.
func (s *Store) SessionUser(ctx context.Context, token string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.password_hash, u.full_name, u.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ? AND s.expires_at > ?`, token, s.stamp()))
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeSessions removes expired sessions.
func (s *Store) PurgeSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.stamp())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Profile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, title, bio, avatar_url, linkedin, github, instagram
		 FROM profiles WHERE id = ?`, userID).
		Scan(&p.ID, &p.Username, &p.Title, &p.Bio, &p.AvatarURL, &p.LinkedIn, &p.GitHub, &p.Instagram)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile overwrites the editable profile fields. The avatar is
// managed by SetAvatar.
func (s *Store) UpdateProfile(ctx context.Context, p Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET username = ?, title = ?, bio = ?, linkedin = ?, github = ?, instagram = ?
		 WHERE id = ?`,
		p.Username, p.Title, p.Bio, p.LinkedIn, p.GitHub, p.Instagram, p.ID)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireRow(res)
}

// SetAvatar stores a new avatar URL and returns the previous one.
func (s *Store) SetAvatar(ctx context.Context, userID, url string) (string, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE profiles SET avatar_url = ? WHERE id = ?`, url, userID); err != nil {
		return "", fmt.Errorf("update avatar: %w", err)
	}
	return p.AvatarURL, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
