package taginput

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	fn      func(ctx context.Context, query string) ([]Tag, error)
}

func (r *recordingSearcher) Search(ctx context.Context, query string) ([]Tag, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	return r.fn(ctx, query)
}

func (r *recordingSearcher) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func fixed(tags ...Tag) *recordingSearcher {
	return &recordingSearcher{fn: func(context.Context, string) ([]Tag, error) {
		return tags, nil
	}}
}

var (
	tagGo    = Tag{ID: "1", Label: "go", Value: "go"}
	tagRust  = Tag{ID: "2", Label: "rust", Value: "rust"}
	tagReact = Tag{ID: "3", Label: "react", Value: "react"}
)

func TestWidgetDebouncesInput(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := fixed(tagReact)
	w := New(s, Options{Debounce: 20 * time.Millisecond, Logger: zaptest.NewLogger(t)})
	defer w.Close()

	w.SetInput("r")
	w.SetInput("re")
	w.SetInput("rea")

	require.Eventually(t, func() bool { return w.State().Open }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"rea"}, s.Queries())
	assert.Equal(t, []Tag{tagReact}, w.State().Suggestions)
	assert.False(t, w.State().Loading)
}

func TestWidgetDropsStaleResponses(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan string, 2)
	release := map[string]chan struct{}{
		"re":    make(chan struct{}),
		"react": make(chan struct{}),
	}
	results := map[string][]Tag{
		"re":    {{ID: "9", Label: "regex", Value: "regex"}},
		"react": {tagReact},
	}
	s := &recordingSearcher{fn: func(ctx context.Context, query string) ([]Tag, error) {
		started <- query
		<-release[query]
		return results[query], nil
	}}

	var (
		mu   sync.Mutex
		seen [][]Tag
	)
	w := New(s, Options{
		Debounce: time.Hour,
		Logger:   zaptest.NewLogger(t),
		OnChange: func(st State) {
			mu.Lock()
			seen = append(seen, st.Suggestions)
			mu.Unlock()
		},
	})

	var flushes sync.WaitGroup
	flush := func() {
		flushes.Add(1)
		go func() {
			defer flushes.Done()
			w.Flush()
		}()
	}

	w.SetInput("re")
	flush()
	require.Equal(t, "re", <-started)

	w.SetInput("react")
	flush()
	require.Equal(t, "react", <-started)

	close(release["react"])
	require.Eventually(t, func() bool {
		return len(w.State().Suggestions) == 1
	}, time.Second, 5*time.Millisecond)

	// The older query answers last.
	close(release["re"])
	flushes.Wait()

	assert.Equal(t, []Tag{tagReact}, w.State().Suggestions)
	mu.Lock()
	for _, sugg := range seen {
		for _, tag := range sugg {
			assert.NotEqual(t, "regex", tag.Label, "stale result was shown")
		}
	}
	mu.Unlock()

	w.Close()
}

func TestWidgetDeliversChangesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	tagRegex := Tag{ID: "9", Label: "regex", Value: "regex"}
	results := map[string][]Tag{
		"re":    {tagRegex},
		"react": {tagReact},
	}
	s := &recordingSearcher{fn: func(_ context.Context, query string) ([]Tag, error) {
		return results[query], nil
	}}

	painting := make(chan struct{})
	var (
		once sync.Once
		mu   sync.Mutex
		last []Tag
	)
	w := New(s, Options{
		Debounce: time.Hour,
		Logger:   zaptest.NewLogger(t),
		OnChange: func(st State) {
			if len(st.Suggestions) == 1 && st.Suggestions[0] == tagRegex {
				// A slow host repaint for the older query.
				once.Do(func() { close(painting) })
				time.Sleep(100 * time.Millisecond)
			}
			mu.Lock()
			last = st.Suggestions
			mu.Unlock()
		},
	})
	defer w.Close()

	w.SetInput("re")
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Flush()
	}()
	<-painting

	w.SetInput("react")
	w.Flush()
	<-done

	require.Equal(t, []Tag{tagReact}, w.State().Suggestions)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Tag{tagReact}, last)
}

func TestWidgetSearchFailureClearsSuggestions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string) ([]Tag, error)
	}{
		{"error", func(context.Context, string) ([]Tag, error) {
			return nil, errors.New("backend down")
		}},
		{"panic", func(context.Context, string) ([]Tag, error) {
			panic("boom")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(&recordingSearcher{fn: tt.fn}, Options{Debounce: time.Hour, Logger: zaptest.NewLogger(t)})
			defer w.Close()

			w.SetInput("go")
			w.Flush()

			st := w.State()
			assert.Empty(t, st.Suggestions)
			assert.False(t, st.Open)
			assert.False(t, st.Loading)
			assert.Equal(t, "go", st.Input)
		})
	}
}

func TestWidgetSearchHonoursTimeout(t *testing.T) {
	s := &recordingSearcher{fn: func(ctx context.Context, _ string) ([]Tag, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	w := New(s, Options{Debounce: time.Hour, Timeout: 10 * time.Millisecond})
	defer w.Close()

	w.SetInput("slow")
	w.Flush()
	assert.False(t, w.State().Open)
}

func TestWidgetBlankInputDoesNotSearch(t *testing.T) {
	s := fixed(tagGo)
	w := New(s, Options{Debounce: time.Hour})
	defer w.Close()

	w.SetInput("   ")
	w.Flush()

	assert.Empty(t, s.Queries())
	assert.False(t, w.State().Open)
}

func TestWidgetHidesSelectedTags(t *testing.T) {
	w := New(fixed(tagGo, tagRust), Options{Debounce: time.Hour, Selected: []Tag{tagGo}})
	defer w.Close()

	w.SetInput("o")
	w.Flush()

	st := w.State()
	assert.Equal(t, []Tag{tagRust}, st.Suggestions)
	assert.Equal(t, []Tag{tagGo}, st.Selected)
}

func TestWidgetKeyboardNavigation(t *testing.T) {
	w := New(fixed(tagGo, tagRust, tagReact), Options{Debounce: time.Hour})
	defer w.Close()

	w.SetInput("x")
	w.Flush()
	require.True(t, w.State().Open)
	assert.Equal(t, -1, w.State().Highlighted)

	for _, want := range []int{0, 1, 2, 0} {
		assert.True(t, w.HandleKey(KeyArrowDown))
		assert.Equal(t, want, w.State().Highlighted)
	}
	assert.True(t, w.HandleKey(KeyArrowUp))
	assert.Equal(t, 2, w.State().Highlighted)

	assert.True(t, w.HandleKey(KeyEnter))
	st := w.State()
	assert.Equal(t, []Tag{tagReact}, st.Selected)
	assert.Equal(t, "", st.Input)
	assert.False(t, st.Open)
	assert.Equal(t, -1, st.Highlighted)
}

func TestWidgetEscapeCloses(t *testing.T) {
	w := New(fixed(tagGo), Options{Debounce: time.Hour})
	defer w.Close()

	w.SetInput("g")
	w.Flush()
	w.HandleKey(KeyArrowDown)

	assert.False(t, w.HandleKey(KeyEscape))
	assert.False(t, w.State().Open)
	assert.True(t, w.HandleKey(KeyEnter), "enter is swallowed even when closed")
	assert.Empty(t, w.State().Selected)
}

func TestWidgetSelectLimits(t *testing.T) {
	var changes int
	w := New(fixed(), Options{Debounce: time.Hour, MaxTags: 2, OnChange: func(State) { changes++ }})
	defer w.Close()

	assert.True(t, w.Select(tagGo))
	assert.False(t, w.Select(tagGo), "duplicate")
	assert.True(t, w.Select(tagRust))
	assert.False(t, w.Select(tagReact), "limit reached")

	assert.Equal(t, []Tag{tagGo, tagRust}, w.State().Selected)
	assert.Equal(t, 2, changes)
}

func TestWidgetBackspaceAndRemove(t *testing.T) {
	w := New(fixed(), Options{Debounce: time.Hour, Selected: []Tag{tagGo, tagRust, tagReact}})
	defer w.Close()

	w.SetInput("ab")
	assert.False(t, w.HandleKey(KeyBackspace))
	assert.Len(t, w.State().Selected, 3, "backspace edits the input while it has text")

	w.SetInput("")
	w.HandleKey(KeyBackspace)
	assert.Equal(t, []Tag{tagGo, tagRust}, w.State().Selected)

	w.Remove(tagGo.ID)
	assert.Equal(t, []Tag{tagRust}, w.State().Selected)
}

func TestSearchFunc(t *testing.T) {
	var f Searcher = SearchFunc(func(_ context.Context, q string) ([]Tag, error) {
		return []Tag{{ID: q}}, nil
	})
	got, err := f.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []Tag{{ID: "q"}}, got)
}
