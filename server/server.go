// Package server is the bugstomper web application: server-rendered pages,
// form actions and the JSON API used by the ask page and the CLI.
package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"bug_stomper/assistant"
	"bug_stomper/auth"
	"bug_stomper/editor"
	"bug_stomper/storage"
	"bug_stomper/store"
	"bug_stomper/taginput"
)

//go:embed templates/*.html static/*
var embedded embed.FS

const genericError = "An unexpected error occurred. Please try again."

// Deps are the collaborators of the server.
type Deps struct {
	Store   *store.Store
	Auth    *auth.Service
	Objects storage.Store
	// Suggester enables /api/tags/suggest. Optional.
	Suggester *assistant.Suggester
	// Reviser enables /api/assistant. Optional.
	Reviser *assistant.Reviser
	Log     *zap.Logger
}

type Options struct {
	HistoryLimit   int
	MaxTags        int
	TagDebounce    time.Duration
	MaxUploadBytes int64
	DraftTTL       time.Duration
	// ObjectsPrefix is the URL path objects are served under.
	ObjectsPrefix string
	// ObjectsHandler serves stored objects. Optional.
	ObjectsHandler http.Handler
}

type Server struct {
	store     *store.Store
	auth      *auth.Service
	objects   storage.Store
	suggester *assistant.Suggester
	reviser   *assistant.Reviser
	log       *zap.Logger
	opts      Options

	drafts    *draftStore
	revisions *reviseStore
	pages     map[string]*pageTemplate
	staticFS  http.Handler
}

func New(deps Deps, opts Options) (*Server, error) {
	if deps.Store == nil || deps.Auth == nil || deps.Objects == nil {
		return nil, errors.New("store, auth and object storage are required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = editor.DefaultHistoryLimit
	}
	if opts.MaxTags <= 0 {
		opts.MaxTags = 5
	}
	if opts.TagDebounce <= 0 {
		opts.TagDebounce = taginput.DefaultDebounce
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = storage.DefaultMaxImageBytes
	}
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = 2 * time.Hour
	}
	if opts.ObjectsPrefix == "" {
		opts.ObjectsPrefix = "/objects"
	}

	pages, err := loadPages()
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		return nil, err
	}

	return &Server{
		store:     deps.Store,
		auth:      deps.Auth,
		objects:   deps.Objects,
		suggester: deps.Suggester,
		reviser:   deps.Reviser,
		log:       deps.Log,
		opts:      opts,
		drafts:    newDraftStore(opts.HistoryLimit, opts.DraftTTL),
		revisions: newReviseStore(opts.DraftTTL),
		pages:     pages,
		staticFS:  http.StripPrefix("/static/", http.FileServer(http.FS(sub))),
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /questions/{ref}", s.handleQuestion)
	mux.HandleFunc("GET /tags", s.handleTags)
	mux.HandleFunc("GET /tags/{tag}", s.handleTag)
	mux.HandleFunc("GET /explore", s.handleExplore)
	mux.HandleFunc("GET /ask", s.handleAsk)
	mux.HandleFunc("GET /signin", s.handleSignInPage)
	mux.HandleFunc("GET /signup", s.handleSignUpPage)
	mux.HandleFunc("GET /account", s.handleAccount)

	mux.HandleFunc("POST /signin", s.actionSignIn)
	mux.HandleFunc("POST /signup", s.actionSignUp)
	mux.HandleFunc("POST /signout", s.actionSignOut)
	mux.HandleFunc("POST /actions/answers", s.actionSubmitAnswer)
	mux.HandleFunc("POST /actions/answers/delete", s.actionDeleteAnswer)
	mux.HandleFunc("POST /actions/answers/mark", s.actionMarkAnswer)
	mux.HandleFunc("POST /actions/comments", s.actionSubmitComment)
	mux.HandleFunc("POST /actions/comments/update", s.actionUpdateComment)
	mux.HandleFunc("POST /actions/comments/delete", s.actionDeleteComment)

	mux.HandleFunc("POST /api/session", s.handleAPISession)
	mux.HandleFunc("POST /api/questions", s.handleCreateQuestion)
	mux.HandleFunc("GET /api/tags/select", s.handleTagSelect)
	mux.HandleFunc("POST /api/tags/suggest", s.handleTagSuggest)
	mux.HandleFunc("GET /api/profile", s.handleProfileGet)
	mux.HandleFunc("PUT /api/profile", s.handleProfilePut)
	mux.HandleFunc("POST /api/profile/avatar", s.handleAvatarUpload)
	mux.HandleFunc("DELETE /api/profile/avatar", s.handleAvatarDelete)
	mux.HandleFunc("POST /api/uploads", s.handleUpload)
	mux.HandleFunc("GET /api/account/{kind}", s.handleAccountList)
	mux.HandleFunc("POST /api/preview", s.handlePreview)
	mux.HandleFunc("POST /api/assistant/sessions", s.handleReviseStart)
	mux.HandleFunc("POST /api/assistant/sessions/{id}/revise", s.handleRevise)

	mux.HandleFunc("POST /api/drafts", s.handleDraftCreate)
	mux.HandleFunc("GET /api/drafts/{id}", s.handleDraftGet)
	mux.HandleFunc("POST /api/drafts/{id}/change", s.handleDraftChange)
	mux.HandleFunc("POST /api/drafts/{id}/undo", s.handleDraftUndo)
	mux.HandleFunc("POST /api/drafts/{id}/redo", s.handleDraftRedo)
	mux.HandleFunc("POST /api/drafts/{id}/format", s.handleDraftFormat)

	mux.Handle("GET /static/", s.staticFS)
	if s.opts.ObjectsHandler != nil {
		prefix := strings.TrimSuffix(s.opts.ObjectsPrefix, "/")
		mux.Handle("GET "+prefix+"/", http.StripPrefix(prefix, s.opts.ObjectsHandler))
	}

	return s.logMiddleware(mux)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs err and answers with a generic message.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// flash redirects to path with a message for the given scope, e.g.
// "answer" yields ?answer_message=...&type=... .
func flash(w http.ResponseWriter, r *http.Request, path, scope, msg string, ok bool) {
	key := "message"
	if scope != "" {
		key = scope + "_message"
	}
	typ := "error"
	if ok {
		typ = "success"
	}
	q := url.Values{key: {msg}, "type": {typ}}
	http.Redirect(w, r, path+"?"+q.Encode(), http.StatusSeeOther)
}

// sentence upper-cases the first letter of an error message for display.
func sentence(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// currentUser resolves the session and answers 401 itself when there is
// none.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	u, err := s.auth.CurrentUser(r)
	if errors.Is(err, auth.ErrUnauthenticated) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return nil, false
	}
	return u, true
}

// optionalUser returns the signed-in user or nil.
func (s *Server) optionalUser(r *http.Request) *store.User {
	u, err := s.auth.CurrentUser(r)
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthenticated) {
			s.log.Warn("session lookup failed", zap.Error(err))
		}
		return nil
	}
	return u
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
