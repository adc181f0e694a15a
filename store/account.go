package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// NewPagination normalises page and limit and derives the rest from total.
func NewPagination(page, limit, total int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	pages := (total + limit - 1) / limit
	// Past the end shows the last page.
	page = min(page, max(pages, 1))
	return Pagination{
		CurrentPage:  page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNextPage:  page < pages,
		HasPrevPage:  page > 1,
	}
}

func (p Pagination) Offset() int {
	return (p.CurrentPage - 1) * p.ItemsPerPage
}

type Page[T any] struct {
	Items      []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ListOptions controls the account listings.
type ListOptions struct {
	Page   int
	Limit  int
	Search string
	Sort   Sort
}

// QuestionRef identifies the question a piece of content belongs to.
type QuestionRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type AccountAnswer struct {
	ID           int64       `json:"id"`
	Content      string      `json:"content"`
	Marked       bool        `json:"marked"`
	Question     QuestionRef `json:"question"`
	CommentCount int         `json:"commentCount"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// AnswerRef identifies the answer a comment belongs to.
type AnswerRef struct {
	ID       int64       `json:"id"`
	Content  string      `json:"content"`
	Question QuestionRef `json:"question"`
}

type AccountComment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Answer    AnswerRef `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AccountQuestions lists every question of userID, drafts included.
func (s *Store) AccountQuestions(ctx context.Context, userID string, opts ListOptions) (*Page[Question], error) {
	cond := ` WHERE q.user_id = ?`
	args := []any{userID}
	if strings.TrimSpace(opts.Search) != "" {
		cond += ` AND (LOWER(q.title) LIKE ? ESCAPE '\' OR LOWER(q.content) LIKE ? ESCAPE '\')`
		p := likePattern(opts.Search)
		args = append(args, p, p)
	}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM questions q`+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	pg := NewPagination(opts.Page, opts.Limit, total)
	qs, err := s.queryQuestions(ctx,
		questionSelect+cond+` ORDER BY `+opts.Sort.sql("q")+` LIMIT ? OFFSET ?`,
		append(args, pg.ItemsPerPage, pg.Offset())...)
	if err != nil {
		return nil, err
	}
	return &Page[Question]{Items: qs, Pagination: pg}, nil
}

func (s *Store) AccountAnswers(ctx context.Context, userID string, opts ListOptions) (*Page[AccountAnswer], error) {
	cond := ` WHERE a.user_id = ?`
	args := []any{userID}
	if strings.TrimSpace(opts.Search) != "" {
		cond += ` AND LOWER(a.content) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(opts.Search))
	}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM answers a`+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	pg := NewPagination(opts.Page, opts.Limit, total)

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.content, a.marked, a.created_at, a.updated_at, q.id, q.title, q.slug,
		        (SELECT COUNT(*) FROM comments c WHERE c.answer_id = a.id)
		 FROM answers a JOIN questions q ON q.id = a.question_id`+cond+
			` ORDER BY `+opts.Sort.sql("a")+` LIMIT ? OFFSET ?`,
		append(args, pg.ItemsPerPage, pg.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	out := &Page[AccountAnswer]{Items: []AccountAnswer{}, Pagination: pg}
	for rows.Next() {
		var (
			a                AccountAnswer
			created, updated int64
		)
		if err := rows.Scan(&a.ID, &a.Content, &a.Marked, &created, &updated,
			&a.Question.ID, &a.Question.Title, &a.Question.Slug, &a.CommentCount); err != nil {
			return nil, err
		}
		a.CreatedAt, a.UpdatedAt = fromStamp(created), fromStamp(updated)
		out.Items = append(out.Items, a)
	}
	return out, rows.Err()
}

func (s *Store) AccountComments(ctx context.Context, userID string, opts ListOptions) (*Page[AccountComment], error) {
	cond := ` WHERE c.user_id = ?`
	args := []any{userID}
	if strings.TrimSpace(opts.Search) != "" {
		cond += ` AND LOWER(c.content) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(opts.Search))
	}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM comments c`+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	pg := NewPagination(opts.Page, opts.Limit, total)

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.content, c.created_at, c.updated_at, a.id, a.content, q.id, q.title, q.slug
		 FROM comments c
		 JOIN answers a ON a.id = c.answer_id
		 JOIN questions q ON q.id = a.question_id`+cond+
			` ORDER BY `+opts.Sort.sql("c")+` LIMIT ? OFFSET ?`,
		append(args, pg.ItemsPerPage, pg.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	out := &Page[AccountComment]{Items: []AccountComment{}, Pagination: pg}
	for rows.Next() {
		var (
			c                AccountComment
			created, updated int64
		)
		if err := rows.Scan(&c.ID, &c.Content, &created, &updated,
			&c.Answer.ID, &c.Answer.Content, &c.Answer.Question.ID, &c.Answer.Question.Title,
			&c.Answer.Question.Slug); err != nil {
			return nil, err
		}
		c.CreatedAt, c.UpdatedAt = fromStamp(created), fromStamp(updated)
		out.Items = append(out.Items, c)
	}
	return out, rows.Err()
}
