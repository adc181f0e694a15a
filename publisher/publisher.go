// Package publisher is an HTTP client for the bugstomper JSON API. It signs
// in, uploads images and posts questions written as local markdown files.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"bug_stomper/taginput"
)

// Question is the server's view of a created question.
type Question struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Published bool   `json:"published"`
}

// TagOption is one entry of the tag search endpoint.
type TagOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// NewQuestion is the payload of CreateQuestion.
type NewQuestion struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Tags      []int64 `json:"tags"`
	Published bool    `json:"published"`
}

type createdResp struct {
	Question Question `json:"question"`
	URL      string   `json:"url"`
}

type errorResp struct {
	Error string `json:"error"`
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to one bugstomper server. The session cookie set by SignIn
// is kept in the client's jar.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

// New creates a Client for baseURL. A nil httpClient gets a default with a
// cookie jar and a one minute timeout.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{base: base, http: httpClient, log: log}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// do sends req and decodes a JSON answer into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResp
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// SignIn starts a session for email.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}
	if err := c.postJSON(ctx, "/api/session", map[string]string{"email": email, "password": password}, nil); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	c.log.Debug("signed in", zap.String("email", email))
	return nil
}

// SearchTags returns the tags whose name contains query.
func (c *Client) SearchTags(ctx context.Context, query string) ([]TagOption, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("/api/tags/select?search="+url.QueryEscape(query)), nil)
	if err != nil {
		return nil, err
	}
	var opts []TagOption
	if err := c.do(req, &opts); err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}
	return opts, nil
}

// Search makes Client a taginput.Searcher.
func (c *Client) Search(ctx context.Context, query string) ([]taginput.Tag, error) {
	opts, err := c.SearchTags(ctx, query)
	if err != nil {
		return nil, err
	}
	tags := make([]taginput.Tag, len(opts))
	for i, o := range opts {
		tags[i] = taginput.Tag{ID: strconv.FormatInt(o.ID, 10), Label: o.Label, Value: o.Value}
	}
	return tags, nil
}

// UploadImage uploads the image at path and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/uploads"), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload %s: server returned no url", filepath.Base(path))
	}
	return out.URL, nil
}

// CreateQuestion posts q and returns the created question and the absolute
// URL of its page.
func (c *Client) CreateQuestion(ctx context.Context, q NewQuestion) (*Question, string, error) {
	var out createdResp
	if err := c.postJSON(ctx, "/api/questions", q, &out); err != nil {
		return nil, "", fmt.Errorf("create question: %w", err)
	}
	return &out.Question, c.endpoint(out.URL), nil
}
