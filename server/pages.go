package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bug_stomper/markdown"
	"bug_stomper/store"
)

const latestQuestions = 6

type pageTemplate struct {
	t *template.Template
}

var templateFuncs = template.FuncMap{
	"render": func(md string) template.HTML {
		// Render sanitizes its output.
		return template.HTML(markdown.Render(md))
	},
	"excerpt": markdown.Excerpt,
	"timeAgo": func(t time.Time) string { return humanize.Time(t) },
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
	"add":     func(a, b int) int { return a + b },
	"owns": func(u *store.User, id string) bool {
		return u != nil && u.ID == id
	},
}

var pageNames = []string{"home", "question", "tags", "questions", "ask", "signin", "signup", "account"}

func loadPages() (map[string]*pageTemplate, error) {
	layout, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(embedded, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(map[string]*pageTemplate, len(pageNames))
	for _, name := range pageNames {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(embedded, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = &pageTemplate{t: t}
	}
	return pages, nil
}

// Flash is a one-shot status message carried in the query string.
type Flash struct {
	Text    string
	Success bool
}

func flashFrom(r *http.Request, scope string) *Flash {
	key := "message"
	if scope != "" {
		key = scope + "_message"
	}
	msg := r.URL.Query().Get(key)
	if msg == "" {
		return nil
	}
	return &Flash{Text: msg, Success: r.URL.Query().Get("type") == "success"}
}

// page is the data every template receives.
type page struct {
	Title string
	User  *store.User
	Flash *Flash
	Data  any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, p page) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("unknown page", zap.String("page", name))
		http.Error(w, genericError, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		s.log.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, genericError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	s.log.Error("page failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, genericError, http.StatusInternalServerError)
}

type homeData struct {
	Tags, Profiles, Questions int
	Latest                    []store.Question
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	var d homeData
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { d.Tags, err = s.store.CountTags(ctx); return })
	g.Go(func() (err error) { d.Profiles, err = s.store.CountProfiles(ctx); return })
	g.Go(func() (err error) { d.Questions, err = s.store.CountQuestions(ctx); return })
	g.Go(func() (err error) { d.Latest, err = s.store.LatestQuestions(ctx, latestQuestions); return })
	if err := g.Wait(); err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, "home", http.StatusOK, page{Title: "Bug Stomper", User: s.optionalUser(r), Data: d})
}

// parseQuestionRef reads the numeric ID of "{id}_{slug}".
func parseQuestionRef(ref string) (int64, bool) {
	idPart, _, _ := strings.Cut(ref, "_")
	id, err := strconv.ParseInt(idPart, 10, 64)
	return id, err == nil && id > 0
}

type questionData struct {
	Question       *store.Question
	Answers        []store.Answer
	Sort           store.Sort
	CommentMessage *Flash
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseQuestionRef(r.PathValue("ref"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	user := s.optionalUser(r)
	d := questionData{Sort: store.ParseSort(r.URL.Query().Get("sort"))}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { d.Question, err = s.store.Question(ctx, id); return })
	g.Go(func() (err error) { d.Answers, err = s.store.Answers(ctx, id, d.Sort); return })
	if err := g.Wait(); err != nil {
		s.pageError(w, r, err)
		return
	}
	if !d.Question.Published && (user == nil || user.ID != d.Question.Author.ID) {
		http.NotFound(w, r)
		return
	}
	d.CommentMessage = flashFrom(r, "comment")
	s.render(w, r, "question", http.StatusOK, page{
		Title: d.Question.Title,
		User:  user,
		Flash: flashFrom(r, "answer"),
		Data:  d,
	})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, "tags", http.StatusOK, page{Title: "Tags", User: s.optionalUser(r), Data: tags})
}

type questionsData struct {
	Heading string
	Search  string
	Tag     string
	Page    *store.Page[store.Question]
	// BasePath is the listing URL without page parameters.
	BasePath string
}

// PageURL links to page n of the listing.
func (d questionsData) PageURL(n int) string {
	q := make([]string, 0, 2)
	if d.Search != "" {
		q = append(q, "search="+template.URLQueryEscaper(d.Search))
	}
	q = append(q, "page="+strconv.Itoa(n))
	return d.BasePath + "?" + strings.Join(q, "&")
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) listQuestions(ctx context.Context, r *http.Request, f store.QuestionFilter) (*store.Page[store.Question], error) {
	f.Page = atoiDefault(r.URL.Query().Get("page"), 1)
	f.Limit = atoiDefault(r.URL.Query().Get("limit"), store.DefaultPageSize)
	return s.store.SearchQuestions(ctx, f)
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	tag := strings.ToLower(r.PathValue("tag"))
	if _, err := s.store.TagByName(r.Context(), tag); err != nil {
		s.pageError(w, r, err)
		return
	}
	pg, err := s.listQuestions(r.Context(), r, store.QuestionFilter{Tag: tag})
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, "questions", http.StatusOK, page{
		Title: "Questions tagged " + tag,
		User:  s.optionalUser(r),
		Data: questionsData{
			Heading:  "Questions tagged [" + tag + "]",
			Tag:      tag,
			Page:     pg,
			BasePath: "/tags/" + tag,
		},
	})
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	pg, err := s.listQuestions(r.Context(), r, store.QuestionFilter{Search: search})
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, "questions", http.StatusOK, page{
		Title: "Explore",
		User:  s.optionalUser(r),
		Data: questionsData{
			Heading:  "Explore questions",
			Search:   search,
			Page:     pg,
			BasePath: "/explore",
		},
	})
}

type askData struct {
	MaxTags    int
	DebounceMS int64
	Actions    []string
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	user := s.optionalUser(r)
	if user == nil {
		flash(w, r, "/signin", "", "You must be signed in to ask a question", false)
		return
	}
	s.render(w, r, "ask", http.StatusOK, page{
		Title: "Ask a question",
		User:  user,
		Data: askData{
			MaxTags:    s.opts.MaxTags,
			DebounceMS: s.opts.TagDebounce.Milliseconds(),
			Actions: []string{"bold", "italic", "underline", "code", "quote",
				"bullet-list", "numbered-list", "link", "image"},
		},
	})
}

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signin", http.StatusOK, page{Title: "Sign in", User: s.optionalUser(r), Flash: flashFrom(r, "")})
}

func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signup", http.StatusOK, page{Title: "Sign up", User: s.optionalUser(r), Flash: flashFrom(r, "")})
}

type accountData struct {
	Profile  *store.Profile
	Tab      string
	Search   string
	Sort     store.Sort
	Pg       store.Pagination
	Items    any
	PrevPage int
	NextPage int
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	user := s.optionalUser(r)
	if user == nil {
		flash(w, r, "/signin", "", "You must be signed in to view your account", false)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	d := accountData{
		Tab:    q.Get("tab"),
		Search: strings.TrimSpace(q.Get("search")),
		Sort:   store.ParseSort(q.Get("sort")),
	}
	opts := store.ListOptions{
		Page:   atoiDefault(q.Get("page"), 1),
		Limit:  atoiDefault(q.Get("limit"), store.DefaultPageSize),
		Search: d.Search,
		Sort:   d.Sort,
	}

	var err error
	d.Profile, err = s.store.Profile(ctx, user.ID)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	switch d.Tab {
	case "answers":
		var pg *store.Page[store.AccountAnswer]
		if pg, err = s.store.AccountAnswers(ctx, user.ID, opts); err == nil {
			d.Items, d.Pg = pg.Items, pg.Pagination
		}
	case "comments":
		var pg *store.Page[store.AccountComment]
		if pg, err = s.store.AccountComments(ctx, user.ID, opts); err == nil {
			d.Items, d.Pg = pg.Items, pg.Pagination
		}
	default:
		d.Tab = "questions"
		var pg *store.Page[store.Question]
		if pg, err = s.store.AccountQuestions(ctx, user.ID, opts); err == nil {
			d.Items, d.Pg = pg.Items, pg.Pagination
		}
	}
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	d.PrevPage, d.NextPage = d.Pg.CurrentPage-1, d.Pg.CurrentPage+1
	s.render(w, r, "account", http.StatusOK, page{Title: "Account", User: user, Flash: flashFrom(r, ""), Data: d})
}
