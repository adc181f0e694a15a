package markdown

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var policy = newPolicy()

// newPolicy allows exactly what Serialize can produce. Anything else, most
// importantly javascript: and data: URLs, is dropped.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	// AllowStandardURLs turns nofollow on; links keep their own rel.
	p.RequireNoFollowOnLinks(false)
	p.AllowElements("p", "br", "strong", "em", "u", "code", "blockquote", "ul", "ol", "li")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z0-9 .:\-]+$`)).Globally()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^noopener noreferrer$`)).OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
}

// Render converts text to sanitized HTML. It never fails; unrecognised or
// unbalanced markup is returned as escaped text.
func Render(text string) string {
	return Sanitize(Serialize(Parse(text)))
}

// Sanitize strips everything the renderer would never emit from s.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}
