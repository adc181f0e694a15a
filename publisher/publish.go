package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"bug_stomper/markdown"
	"bug_stomper/taginput"
)

// PublishParams describes a question kept in a local markdown file.
type PublishParams struct {
	MarkdownPath string
	Title        string
	Tags         []string
	// Draft keeps the question unpublished.
	Draft bool
}

// Result is the outcome of PublishQuestion.
type Result struct {
	Question *Question
	URL      string
	// Images maps local image references to their uploaded URLs.
	Images map[string]string
}

// PublishQuestion uploads the local images of the markdown file, resolves
// the tag names and creates the question. The client must be signed in.
func (c *Client) PublishQuestion(ctx context.Context, params PublishParams) (*Result, error) {
	if params.MarkdownPath == "" || params.Title == "" {
		return nil, errors.New("markdown path and title are required")
	}
	if len(params.Tags) == 0 {
		return nil, errors.New("at least one tag is required")
	}

	md, err := os.ReadFile(params.MarkdownPath)
	if err != nil {
		return nil, err
	}

	images := make(map[string]string)
	content, err := replaceMarkdownImages(string(md), params.MarkdownPath, func(path string) (string, error) {
		if u, ok := images[path]; ok {
			return u, nil
		}
		u, err := c.UploadImage(ctx, path)
		if err != nil {
			return "", err
		}
		images[path] = u
		c.log.Info("uploaded image", zap.String("path", path), zap.String("url", u))
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	tagIDs, err := c.ResolveTags(ctx, params.Tags)
	if err != nil {
		return nil, err
	}

	q, pageURL, err := c.CreateQuestion(ctx, NewQuestion{
		Title:     params.Title,
		Content:   content,
		Tags:      tagIDs,
		Published: !params.Draft,
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("question created",
		zap.Int64("id", q.ID),
		zap.String("url", pageURL),
		zap.String("excerpt", markdown.Excerpt(content, 80)),
	)
	return &Result{Question: q, URL: pageURL, Images: images}, nil
}

// ResolveTags maps tag names to IDs through a tag input backed by the
// server's tag search. Every name must match an existing tag exactly,
// ignoring case.
func (c *Client) ResolveTags(ctx context.Context, names []string) ([]int64, error) {
	// The widget reports search failures as empty suggestions; keep the
	// error so the caller sees why a tag did not resolve.
	var searchErr error
	w := taginput.New(taginput.SearchFunc(func(sctx context.Context, q string) ([]taginput.Tag, error) {
		sctx, cancel := mergeCancel(sctx, ctx)
		defer cancel()
		tags, err := c.Search(sctx, q)
		searchErr = err
		return tags, err
	}), taginput.Options{
		// Searches only run through Flush, on this goroutine.
		Debounce: time.Hour,
		MaxTags:  len(names),
		Logger:   c.log,
	})
	defer w.Close()

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		w.SetInput(name)
		w.Flush()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var match *taginput.Tag
		for _, t := range w.State().Suggestions {
			if strings.EqualFold(t.Label, name) {
				match = &t
				break
			}
		}
		if match == nil {
			if selectedHas(w.State().Selected, name) {
				continue
			}
			if searchErr != nil {
				return nil, fmt.Errorf("resolve tag %q: %w", name, searchErr)
			}
			return nil, fmt.Errorf("unknown tag %q", name)
		}
		w.Select(*match)
	}

	selected := w.State().Selected
	if len(selected) == 0 {
		return nil, errors.New("no tags resolved")
	}
	ids := make([]int64, 0, len(selected))
	for _, t := range selected {
		id, err := strconv.ParseInt(t.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tag %q has invalid id %q", t.Label, t.ID)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func selectedHas(tags []taginput.Tag, name string) bool {
	for _, t := range tags {
		if strings.EqualFold(t.Label, name) {
			return true
		}
	}
	return false
}

// mergeCancel returns a context derived from a that is also cancelled when
// b is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

var imgPattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)

// replaceMarkdownImages hands every local image reference of md to upload
// and substitutes the returned URL. Relative paths that do not exist from
// the working directory are resolved against the markdown file's directory.
func replaceMarkdownImages(md, mdPath string, upload func(path string) (string, error)) (string, error) {
	matches := imgPattern.FindAllStringSubmatchIndex(md, -1)
	if len(matches) == 0 {
		return md, nil
	}

	baseDir := filepath.Dir(mdPath)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2], m[3]
		b.WriteString(md[last:start])
		last = end

		ref := strings.TrimSpace(md[start:end])
		local, ok := localImage(ref, baseDir)
		if !ok {
			b.WriteString(md[start:end])
			continue
		}
		u, err := upload(local)
		if err != nil {
			return "", err
		}
		b.WriteString(u)
	}
	b.WriteString(md[last:])
	return b.String(), nil
}

// localImage reports the file an image reference points to. URLs and
// absolute paths missing on disk, such as server paths, are not local.
func localImage(ref, baseDir string) (string, bool) {
	for _, p := range []string{"http://", "https://", "data:"} {
		if strings.HasPrefix(ref, p) {
			return "", false
		}
	}
	if filepath.IsAbs(ref) {
		_, err := os.Stat(ref)
		return ref, err == nil
	}
	if _, err := os.Stat(ref); err == nil {
		return ref, true
	}
	return filepath.Join(baseDir, ref), true
}
