package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Questions int    `json:"questions,omitempty"`
}

type Question struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	Raw               string    `json:"raw"`
	Slug              string    `json:"slug"`
	Published         bool      `json:"published"`
	Author            Author    `json:"author"`
	Tags              []Tag     `json:"tags"`
	AnswerCount       int       `json:"answerCount"`
	HasAcceptedAnswer bool      `json:"hasAcceptedAnswer"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Path is the question's page path.
func (q *Question) Path() string {
	return fmt.Sprintf("/questions/%d_%s", q.ID, q.Slug)
}

// NewQuestion is the input of CreateQuestion.
type NewQuestion struct {
	UserID    string
	Title     string
	Content   string
	Raw       string
	TagIDs    []int64
	Published bool
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title and joins its alphanumeric runs with '-'.
func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// SearchTags returns up to limit tags whose name contains query, ordered by
// name.
func (s *Store) SearchTags(ctx context.Context, query string, limit int) ([]Tag, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM tags WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY name LIMIT ?`,
		likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ListTags returns every tag with the number of published questions using
// it, most used first.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, COUNT(q.id)
		 FROM tags t
		 LEFT JOIN question_tags qt ON qt.tag_id = t.id
		 LEFT JOIN questions q ON q.id = qt.question_id AND q.published = 1
		 GROUP BY t.id
		 ORDER BY COUNT(q.id) DESC, t.name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Questions); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// CreateQuestion inserts a question and its tag links in one transaction.
// Nothing is stored when any tag cannot be linked.
func (s *Store) CreateQuestion(ctx context.Context, nq NewQuestion) (*Question, error) {
	now := s.stamp()
	slug := Slugify(nq.Title)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO questions (title, content, raw, slug, published, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nq.Title, nq.Content, nq.Raw, slug, nq.Published, nq.UserID, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, tagID := range nq.TagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_tags (question_id, tag_id) VALUES (?, ?)`, id, tagID); err != nil {
			return nil, fmt.Errorf("link tag %d: %w", tagID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Question(ctx, id)
}

const questionSelect = `
SELECT q.id, q.title, q.content, q.raw, q.slug, q.published, q.created_at, q.updated_at,
       p.id, p.username, p.avatar_url,
       (SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id),
       EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id AND a.marked = 1)
FROM questions q
JOIN profiles p ON p.id = q.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (Question, error) {
	var (
		q                Question
		created, updated int64
	)
	err := r.Scan(&q.ID, &q.Title, &q.Content, &q.Raw, &q.Slug, &q.Published, &created, &updated,
		&q.Author.ID, &q.Author.Username, &q.Author.AvatarURL, &q.AnswerCount, &q.HasAcceptedAnswer)
	q.CreatedAt = fromStamp(created)
	q.UpdatedAt = fromStamp(updated)
	return q, err
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	qs := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		qs = append(qs, q)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// attachTags fills in Tags for every question.
func (s *Store) attachTags(ctx context.Context, qs []Question) error {
	if len(qs) == 0 {
		return nil
	}
	ids := make([]any, len(qs))
	index := make(map[int64]int, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
		index[q.ID] = i
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT qt.question_id, t.id, t.name
		 FROM question_tags qt JOIN tags t ON t.id = qt.tag_id
		 WHERE qt.question_id IN (`+placeholders(len(ids))+`)
		 ORDER BY t.name`, ids...)
	if err != nil {
		return fmt.Errorf("query question tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			qid int64
			t   Tag
		)
		if err := rows.Scan(&qid, &t.ID, &t.Name); err != nil {
			return err
		}
		i := index[qid]
		qs[i].Tags = append(qs[i].Tags, t)
	}
	return rows.Err()
}

// Question returns a question by ID, published or not.
func (s *Store) Question(ctx context.Context, id int64) (*Question, error) {
	qs, err := s.queryQuestions(ctx, questionSelect+` WHERE q.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNotFound
	}
	return &qs[0], nil
}

// LatestQuestions returns the newest published questions.
func (s *Store) LatestQuestions(ctx context.Context, limit int) ([]Question, error) {
	return s.queryQuestions(ctx,
		questionSelect+` WHERE q.published = 1 ORDER BY q.created_at DESC, q.id DESC LIMIT ?`, limit)
}

// QuestionFilter narrows SearchQuestions.
type QuestionFilter struct {
	Search string
	// Tag restricts results to questions carrying this tag name.
	Tag   string
	Page  int
	Limit int
}

// SearchQuestions pages through published questions matching the filter,
// newest first.
func (s *Store) SearchQuestions(ctx context.Context, f QuestionFilter) (*Page[Question], error) {
	var (
		where = []string{"q.published = 1"}
		args  []any
	)
	if strings.TrimSpace(f.Search) != "" {
		where = append(where, `(LOWER(q.title) LIKE ? ESCAPE '\' OR LOWER(q.raw) LIKE ? ESCAPE '\')`)
		p := likePattern(f.Search)
		args = append(args, p, p)
	}
	if f.Tag != "" {
		where = append(where,
			`EXISTS (SELECT 1 FROM question_tags qt JOIN tags t ON t.id = qt.tag_id
			         WHERE qt.question_id = q.id AND t.name = ?)`)
		args = append(args, strings.ToLower(f.Tag))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	total, err := s.count(ctx, `SELECT COUNT(*) FROM questions q`+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	pg := NewPagination(f.Page, f.Limit, total)

	qs, err := s.queryQuestions(ctx,
		questionSelect+cond+` ORDER BY q.created_at DESC, q.id DESC LIMIT ? OFFSET ?`,
		append(args, pg.ItemsPerPage, pg.Offset())...)
	if err != nil {
		return nil, err
	}
	return &Page[Question]{Items: qs, Pagination: pg}, nil
}

// TagByName looks a tag up by exact name.
func (s *Store) TagByName(ctx context.Context, name string) (*Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE name = ?`, strings.ToLower(name)).
		Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tag: %w", err)
	}
	return &t, nil
}
