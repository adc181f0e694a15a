package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Answer struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"questionId"`
	Author     Author    `json:"author"`
	Content    string    `json:"content"`
	Marked     bool      `json:"marked"`
	Comments   []Comment `json:"comments"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	AnswerID  int64     `json:"answerId"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sort orders listings by creation time.
type Sort string

const (
	Newest Sort = "newest"
	Oldest Sort = "oldest"
)

// ParseSort maps anything but "oldest" to Newest.
func ParseSort(s string) Sort {
	if s == string(Oldest) {
		return Oldest
	}
	return Newest
}

func (s Sort) sql(col string) string {
	if s == Oldest {
		return col + ".created_at ASC, " + col + ".id ASC"
	}
	return col + ".created_at DESC, " + col + ".id DESC"
}

func (s *Store) CreateAnswer(ctx context.Context, questionID int64, userID, content string) (int64, error) {
	now := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO answers (question_id, user_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		questionID, userID, content, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert answer: %w", err)
	}
	return res.LastInsertId()
}

// Answers lists a question's answers with their comments. Comments are
// always oldest first.
func (s *Store) Answers(ctx context.Context, questionID int64, sort Sort) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.question_id, a.content, a.marked, a.created_at, a.updated_at,
		        p.id, p.username, p.avatar_url
		 FROM answers a JOIN profiles p ON p.id = a.user_id
		 WHERE a.question_id = ?
		 ORDER BY `+sort.sql("a"), questionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	var answers []Answer
	index := map[int64]int{}
	for rows.Next() {
		var (
			a                Answer
			created, updated int64
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Content, &a.Marked, &created, &updated,
			&a.Author.ID, &a.Author.Username, &a.Author.AvatarURL); err != nil {
			rows.Close()
			return nil, err
		}
		a.CreatedAt, a.UpdatedAt = fromStamp(created), fromStamp(updated)
		index[a.ID] = len(answers)
		answers = append(answers, a)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	crows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.answer_id, c.content, c.created_at, c.updated_at,
		        p.id, p.username, p.avatar_url
		 FROM comments c
		 JOIN answers a ON a.id = c.answer_id
		 JOIN profiles p ON p.id = c.user_id
		 WHERE a.question_id = ?
		 ORDER BY c.created_at ASC, c.id ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var (
			c                Comment
			created, updated int64
		)
		if err := crows.Scan(&c.ID, &c.AnswerID, &c.Content, &created, &updated,
			&c.Author.ID, &c.Author.Username, &c.Author.AvatarURL); err != nil {
			return nil, err
		}
		c.CreatedAt, c.UpdatedAt = fromStamp(created), fromStamp(updated)
		if i, ok := index[c.AnswerID]; ok {
			answers[i].Comments = append(answers[i].Comments, c)
		}
	}
	return answers, crows.Err()
}

func (s *Store) answerOwner(ctx context.Context, id int64) (userID string, questionID int64, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT user_id, question_id FROM answers WHERE id = ?`, id).
		Scan(&userID, &questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return userID, questionID, err
}

// DeleteAnswer removes an answer written by userID.
func (s *Store) DeleteAnswer(ctx context.Context, id int64, userID string) error {
	owner, _, err := s.answerOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return nil
}

// MarkAnswer sets the accepted flag of an answer. Only the author of the
// question may do this. Marking an answer clears the flag on every other
// answer of the same question.
func (s *Store) MarkAnswer(ctx context.Context, id int64, userID string, marked bool) error {
	_, questionID, err := s.answerOwner(ctx, id)
	if err != nil {
		return err
	}
	var asker string
	if err := s.db.QueryRowContext(ctx, `SELECT user_id FROM questions WHERE id = ?`, questionID).
		Scan(&asker); err != nil {
		return fmt.Errorf("query question owner: %w", err)
	}
	if asker != userID {
		return ErrForbidden
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if marked {
		if _, err := tx.ExecContext(ctx,
			`UPDATE answers SET marked = 0 WHERE question_id = ? AND id <> ?`, questionID, id); err != nil {
			return fmt.Errorf("unmark answers: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE answers SET marked = ?, updated_at = ? WHERE id = ?`, marked, s.stamp(), id); err != nil {
		return fmt.Errorf("mark answer: %w", err)
	}
	return tx.Commit()
}

func (s *Store) CreateComment(ctx context.Context, answerID int64, userID, content string) (int64, error) {
	now := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (answer_id, user_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		answerID, userID, content, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) commentOwner(ctx context.Context, id int64) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM comments WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

// UpdateComment replaces the content of a comment written by userID.
func (s *Store) UpdateComment(ctx context.Context, id int64, userID, content string) error {
	owner, err := s.commentOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`, content, s.stamp(), id)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id int64, userID string) error {
	owner, err := s.commentOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
