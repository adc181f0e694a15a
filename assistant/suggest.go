package assistant

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// MaxSuggestedTags matches the number of tags a question may carry.
const MaxSuggestedTags = 5

// Suggester proposes tags for a question draft.
type Suggester struct {
	llm LLMClient
	log *zap.Logger
	// Vocabulary lists existing tag names. Optional.
	Vocabulary func(ctx context.Context) ([]string, error)
}

func NewSuggester(llm LLMClient, log *zap.Logger) (*Suggester, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Suggester{llm: llm, log: log}, nil
}

// SuggestTags returns up to MaxSuggestedTags normalised tag names.
func (s *Suggester) SuggestTags(ctx context.Context, title, content string) ([]string, error) {
	var known []string
	if s.Vocabulary != nil {
		v, err := s.Vocabulary(ctx)
		if err != nil {
			s.log.Warn("loading tag vocabulary failed", zap.Error(err))
		}
		known = v
	}

	raw, err := s.llm.Complete(ctx, BuildTagPrompt(title, content, known))
	if err != nil {
		return nil, err
	}
	tags := ParseTags(raw)
	s.log.Debug("suggested tags", zap.Strings("tags", tags))
	return tags, nil
}

var (
	tagSeparators = regexp.MustCompile(`[,\n;]+`)
	tagListMarker = regexp.MustCompile(`^(?:[-*]|\d+[.)])\s*`)
	tagInvalid    = regexp.MustCompile(`[^a-z0-9+#.\-]+`)
)

// ParseTags splits a model answer on commas, semicolons and newlines and
// normalises each entry. Empty and repeated tags are dropped.
func ParseTags(raw string) []string {
	seen := map[string]bool{}
	var tags []string
	for _, part := range tagSeparators.Split(raw, -1) {
		t := strings.ToLower(strings.TrimSpace(part))
		t = tagListMarker.ReplaceAllString(t, "")
		t = strings.Trim(t, "`\"'")
		t = strings.Join(strings.Fields(t), "-")
		t = strings.Trim(tagInvalid.ReplaceAllString(t, ""), ".-")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
		if len(tags) == MaxSuggestedTags {
			break
		}
	}
	return tags
}
