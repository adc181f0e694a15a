package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"bug_stomper/auth"
	"bug_stomper/markdown"
	"bug_stomper/storage"
	"bug_stomper/store"
)

const (
	minTitleLen    = 10
	maxTitleLen    = 200
	minContentLen  = 20
	maxContentLen  = 10000
	tagSelectMax   = 20
	suggestTimeout = 30 * time.Second
)

type sessionReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResp struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	var req sessionReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.auth.SignIn(r.Context(), w, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, sentence(err))
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResp{ID: u.ID, Email: u.Email})
}

type questionReq struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Tags      []int64 `json:"tags"`
	Published bool    `json:"published"`
}

func (s *Server) validateQuestion(req *questionReq) string {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if n := utf8.RuneCountInString(req.Title); n < minTitleLen || n > maxTitleLen {
		return "Title must be between 10 and 200 characters"
	}
	if n := utf8.RuneCountInString(req.Content); n < minContentLen || n > maxContentLen {
		return "Content must be between 20 and 10000 characters"
	}
	if len(req.Tags) < 1 || len(req.Tags) > s.opts.MaxTags {
		return "Select between 1 and " + strconv.Itoa(s.opts.MaxTags) + " tags"
	}
	seen := map[int64]bool{}
	for _, id := range req.Tags {
		if seen[id] {
			return "Duplicate tags are not allowed"
		}
		seen[id] = true
	}
	return ""
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req questionReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := s.validateQuestion(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	q, err := s.store.CreateQuestion(r.Context(), store.NewQuestion{
		UserID:    user.ID,
		Title:     req.Title,
		Content:   req.Content,
		Raw:       markdown.PlainText(req.Content),
		TagIDs:    req.Tags,
		Published: req.Published,
	})
	if err != nil {
		s.log.Error("create question", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create question")
		return
	}
	s.log.Info("question created", zap.Int64("question_id", q.ID), zap.Bool("published", q.Published))
	writeJSON(w, http.StatusCreated, map[string]any{"question": q, "url": q.Path()})
}

// tagOption is the shape the tag input consumes.
type tagOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

func (s *Server) handleTagSelect(w http.ResponseWriter, r *http.Request) {
	limit := atoiDefault(r.URL.Query().Get("limit"), tagSelectMax)
	tags, err := s.store.SearchTags(r.Context(), r.URL.Query().Get("search"), min(limit, tagSelectMax))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]tagOption, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagOption{ID: t.ID, Label: t.Name, Value: t.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type suggestReq struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleTagSuggest(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		writeError(w, http.StatusNotFound, "Tag suggestions are not configured")
		return
	}
	if _, ok := s.currentUser(w, r); !ok {
		return
	}
	var req suggestReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), suggestTimeout)
	defer cancel()
	names, err := s.suggester.SuggestTags(ctx, req.Title, req.Content)
	if err != nil {
		s.log.Warn("tag suggestion failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Tag suggestion failed")
		return
	}

	// Only tags that exist can be attached to a question.
	out := []tagOption{}
	for _, name := range names {
		t, err := s.store.TagByName(r.Context(), name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		out = append(out, tagOption{ID: t.ID, Label: t.Name, Value: t.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type profileResp struct {
	store.Profile
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (s *Server) loadProfile(ctx context.Context, u *store.User) (*profileResp, error) {
	p, err := s.store.Profile(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &profileResp{Profile: *p, Email: u.Email, FullName: u.FullName}, nil
}

func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	resp, err := s.loadProfile(r.Context(), user)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type profileReq struct {
	FullName  string `json:"fullName"`
	Username  string `json:"username"`
	Title     string `json:"title"`
	Bio       string `json:"bio"`
	LinkedIn  string `json:"linkedin"`
	GitHub    string `json:"github"`
	Instagram string `json:"instagram"`
}

func (s *Server) handleProfilePut(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req profileReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	ctx := r.Context()
	err := s.store.UpdateProfile(ctx, store.Profile{
		ID:        user.ID,
		Username:  username,
		Title:     strings.TrimSpace(req.Title),
		Bio:       strings.TrimSpace(req.Bio),
		LinkedIn:  strings.TrimSpace(req.LinkedIn),
		GitHub:    strings.TrimSpace(req.GitHub),
		Instagram: strings.TrimSpace(req.Instagram),
	})
	if errors.Is(err, store.ErrUsernameTaken) {
		writeError(w, http.StatusBadRequest, "Username is already taken")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if req.FullName != "" {
		if err := s.store.UpdateFullName(ctx, user.ID, strings.TrimSpace(req.FullName)); err != nil {
			s.log.Warn("update full name", zap.Error(err))
		} else {
			user.FullName = strings.TrimSpace(req.FullName)
		}
	}
	resp, err := s.loadProfile(ctx, user)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readImageUpload validates the multipart image in field.
func (s *Server) readImageUpload(w http.ResponseWriter, r *http.Request, field string) (*storage.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+(1<<20))
	file, _, err := r.FormFile(field)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is "+humanize.Bytes(uint64(s.opts.MaxUploadBytes))+".")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return nil, false
	}
	defer file.Close()

	img, err := storage.ReadImage(file, s.opts.MaxUploadBytes)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is "+humanize.Bytes(uint64(s.opts.MaxUploadBytes))+".")
		return nil, false
	case errors.Is(err, storage.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "Invalid file type. Please upload a JPEG, PNG, GIF, or WebP image.")
		return nil, false
	case err != nil:
		s.internalError(w, r, err)
		return nil, false
	}
	return img, true
}

func (s *Server) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	img, ok := s.readImageUpload(w, r, "avatar")
	if !ok {
		return
	}
	ctx := r.Context()
	key := storage.AvatarKey(user.ID, img.Ext)
	url, err := storage.PutImage(ctx, s.objects, key, img)
	if err != nil {
		s.log.Error("store avatar", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	prev, err := s.store.SetAvatar(ctx, user.ID, url)
	if err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			s.log.Warn("remove orphaned avatar", zap.String("key", key), zap.Error(derr))
		}
		s.log.Error("update avatar", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	s.removeObject(ctx, prev)
	writeJSON(w, http.StatusOK, map[string]string{"avatarUrl": url})
}

func (s *Server) handleAvatarDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	prev, err := s.store.SetAvatar(r.Context(), user.ID, "")
	if err != nil {
		s.log.Error("remove avatar", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to remove avatar")
		return
	}
	s.removeObject(r.Context(), prev)
	writeJSON(w, http.StatusOK, map[string]string{"avatarUrl": ""})
}

// removeObject deletes the object behind url when this server issued it.
func (s *Server) removeObject(ctx context.Context, url string) {
	key, ok := s.objects.Key(url)
	if !ok {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("remove object", zap.String("key", key), zap.Error(err))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	img, ok := s.readImageUpload(w, r, "file")
	if !ok {
		return
	}
	url, err := storage.PutImage(r.Context(), s.objects, storage.UploadKey(user.ID, img.Ext), img)
	if err != nil {
		s.log.Error("store upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := store.ListOptions{
		Page:   atoiDefault(q.Get("page"), 1),
		Limit:  atoiDefault(q.Get("limit"), store.DefaultPageSize),
		Search: q.Get("search"),
		Sort:   store.ParseSort(q.Get("sort")),
	}
	ctx := r.Context()

	var (
		out any
		err error
	)
	switch r.PathValue("kind") {
	case "questions":
		out, err = s.store.AccountQuestions(ctx, user.ID, opts)
	case "answers":
		out, err = s.store.AccountAnswers(ctx, user.ID, opts)
	case "comments":
		out, err = s.store.AccountComments(ctx, user.ID, opts)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type previewReq struct {
	Content string `json:"content"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": markdown.Render(req.Content)})
}
