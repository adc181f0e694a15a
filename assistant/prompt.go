package assistant

import (
	"fmt"
	"strings"

	"bug_stomper/markdown"
)

// Prompt is the message set sent to the model.
type Prompt struct {
	System  string
	User    string
	History []Message
}

type Message struct {
	Role    string
	Content string
}

// maxPromptBody bounds how much of the question body is sent.
const maxPromptBody = 2000

// BuildTagPrompt asks for tags fitting a question. Known tags are listed so
// the model prefers them over inventing new ones.
func BuildTagPrompt(title, content string, known []string) Prompt {
	var sb strings.Builder
	sb.WriteString("You label programming questions for a Q&A site.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString(fmt.Sprintf("- Reply with at most %d tags, comma separated, nothing else.\n", MaxSuggestedTags))
	sb.WriteString("- Tags are lowercase single words; use '-' instead of spaces.\n")
	if len(known) > 0 {
		sb.WriteString("- Prefer these existing tags when they fit: ")
		sb.WriteString(strings.Join(known, ", "))
		sb.WriteString(".\n")
	}

	body := markdown.Excerpt(content, maxPromptBody)
	user := fmt.Sprintf("Title: %s\n\nQuestion:\n%s", strings.TrimSpace(title), body)

	return Prompt{
		System: sb.String(),
		User:   user,
	}
}
