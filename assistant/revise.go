package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bug_stomper/markdown"
)

// Draft is a model proposal for a question.
type Draft struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// Turn records one feedback round.
type Turn struct {
	Comment   string    `json:"comment"`
	Draft     Draft     `json:"draft"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reviser rewrites questions so they are easier to answer.
type Reviser struct {
	llm LLMClient
	log *zap.Logger
}

func NewReviser(llm LLMClient, log *zap.Logger) (*Reviser, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reviser{llm: llm, log: log}, nil
}

// Generate proposes a first draft when prev is nil and otherwise revises
// prev according to comment.
func (r *Reviser) Generate(ctx context.Context, title, content string, prev *Draft, history []Turn, comment string) (Draft, error) {
	var prompt Prompt
	if prev == nil {
		prompt = BuildImprovePrompt(title, content)
	} else {
		prompt = BuildRevisionPrompt(*prev, comment, history)
	}

	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return Draft{}, err
	}
	fallback := title
	if prev != nil {
		fallback = prev.Title
	}
	d, err := PostProcess(raw, fallback)
	if err != nil {
		return Draft{}, err
	}
	r.log.Debug("draft generated", zap.String("title", d.Title), zap.Int("bytes", len(d.Markdown)))
	return d, nil
}

// BuildImprovePrompt asks for a clearer version of a question.
func BuildImprovePrompt(title, content string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an editor on a programming Q&A site. Rewrite the question so it is easy to answer.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Reply with markdown only, no explanations.\n")
	sb.WriteString("- Start with a level one heading holding a specific title of 10 to 200 characters.\n")
	sb.WriteString("- Keep every code sample and error message verbatim in fenced code blocks.\n")
	sb.WriteString("- State what was tried and what was expected.\n")
	sb.WriteString("- Do not answer the question.\n")

	body := strings.TrimSpace(content)
	if len([]rune(body)) > maxPromptBody*2 {
		body = string([]rune(body)[:maxPromptBody*2])
	}
	return Prompt{
		System: sb.String(),
		User:   fmt.Sprintf("Title: %s\n\nQuestion:\n%s", strings.TrimSpace(title), body),
	}
}

// BuildRevisionPrompt asks for the smallest change to prev that addresses
// comment. Earlier comments are replayed as history.
func BuildRevisionPrompt(prev Draft, comment string, history []Turn) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an editor. Apply the user's feedback to the question with the smallest necessary change.\n")
	sb.WriteString("- Keep the heading and the markdown structure.\n")
	sb.WriteString("- If the feedback is unreasonable, keep the text unchanged.\n")
	sb.WriteString("- Reply with the complete markdown only.\n")

	var msgs []Message
	for _, t := range history {
		if t.Comment == "" {
			continue
		}
		msgs = append(msgs, Message{Role: "user", Content: t.Comment})
	}
	return Prompt{
		System:  sb.String(),
		User:    fmt.Sprintf("Current question:\n# %s\n\n%s\n\nFeedback: %s", prev.Title, prev.Markdown, comment),
		History: msgs,
	}
}

var (
	headingLine = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	outerFence  = regexp.MustCompile("(?s)^```(?:markdown|md)?\\s*\n(.*)\n```$")
)

// PostProcess turns a model reply into a Draft. The first level one
// heading becomes the title and is removed from the body; fallbackTitle is
// used when there is none.
func PostProcess(raw, fallbackTitle string) (Draft, error) {
	md := strings.TrimSpace(raw)
	if m := outerFence.FindStringSubmatch(md); m != nil {
		md = strings.TrimSpace(m[1])
	}
	if md == "" {
		return Draft{}, errors.New("model returned empty markdown")
	}

	title := strings.TrimSpace(fallbackTitle)
	if loc := headingLine.FindStringSubmatchIndex(md); loc != nil {
		title = strings.TrimSpace(md[loc[2]:loc[3]])
		md = strings.TrimSpace(md[:loc[0]] + md[loc[1]:])
	}
	if md == "" {
		return Draft{}, errors.New("model returned a title without a body")
	}
	return Draft{Title: title, Markdown: md}, nil
}

// Session holds the rounds of improving one question. It is safe for
// concurrent use; rounds are serialised.
type Session struct {
	ID string

	mu      sync.Mutex
	title   string
	content string
	draft   *Draft
	history []Turn
	reviser *Reviser
	now     func() time.Time
}

func NewSession(id, title, content string, r *Reviser) *Session {
	return &Session{ID: id, title: title, content: content, reviser: r, now: time.Now}
}

// Propose generates the first draft.
func (s *Session) Propose(ctx context.Context) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.reviser.Generate(ctx, s.title, s.content, nil, s.history, "")
	if err != nil {
		return Draft{}, err
	}
	s.record("", d)
	return d, nil
}

// Revise applies comment to the current draft, proposing one first if
// needed.
func (s *Session) Revise(ctx context.Context, comment string) (Draft, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return Draft{}, errors.New("comment is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.draft
	if prev == nil {
		prev = &Draft{Title: s.title, Markdown: s.content}
	}
	d, err := s.reviser.Generate(ctx, s.title, s.content, prev, s.history, comment)
	if err != nil {
		return Draft{}, err
	}
	s.record(comment, d)
	return d, nil
}

func (s *Session) record(comment string, d Draft) {
	s.draft = &d
	s.history = append(s.history, Turn{Comment: comment, Draft: d, CreatedAt: s.now()})
}

// History returns a copy of the rounds so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

// Summary is a one line description of the current draft for listings.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return markdown.Excerpt(s.content, 120)
	}
	return markdown.Excerpt(s.draft.Markdown, 120)
}
