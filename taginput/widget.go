// Package taginput implements the search-as-you-type tag selector of the
// question form.
package taginput

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultTimeout  = 5 * time.Second
)

// Tag is a selectable suggestion.
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Searcher looks tags up by a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Tag, error)
}

// SearchFunc adapts a function to Searcher.
type SearchFunc func(ctx context.Context, query string) ([]Tag, error)

func (f SearchFunc) Search(ctx context.Context, query string) ([]Tag, error) {
	return f(ctx, query)
}

// State is what the widget shows.
type State struct {
	Input       string
	Selected    []Tag
	Suggestions []Tag
	// Highlighted is an index into Suggestions, or -1.
	Highlighted int
	Open        bool
	Loading     bool
}

func (s State) clone() State {
	s.Selected = append([]Tag(nil), s.Selected...)
	s.Suggestions = append([]Tag(nil), s.Suggestions...)
	return s
}

type Options struct {
	// Debounce is the quiet period before a search is issued.
	Debounce time.Duration
	// Timeout bounds a single search.
	Timeout time.Duration
	// MaxTags limits the selection; 0 means unlimited.
	MaxTags  int
	Selected []Tag
	// OnChange receives a copy of the state after every change. It is
	// called without the widget lock held, possibly from a timer goroutine.
	// Calls are serialised and a snapshot older than one already delivered
	// is skipped. OnChange must not call back into the widget.
	OnChange func(State)
	Logger   *zap.Logger
}

// Widget holds the state of one tag input. Only the response to the most
// recently issued search is ever applied; slower answers to older queries
// are dropped.
//
// All methods are safe for concurrent use.
type Widget struct {
	searcher  Searcher
	opts      Options
	log       *zap.Logger
	debouncer *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	query   string // input the next search will use
	seq     uint64 // latest issued search
	version uint64 // bumped on every state change
	closed  bool

	notifyMu  sync.Mutex
	delivered uint64 // version of the last snapshot passed to OnChange
}

func New(searcher Searcher, opts Options) *Widget {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		searcher: searcher,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		state: State{
			Selected:    append([]Tag(nil), opts.Selected...),
			Highlighted: -1,
		},
	}
	w.debouncer = NewDebouncer(opts.Debounce, w.search)
	return w
}

// State returns a copy of the current state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// SetInput updates the text field and schedules a search.
func (w *Widget) SetInput(input string) {
	w.update(func(s *State) {
		s.Input = input
		w.query = input
	})
	w.debouncer.Call()
}

// Flush runs a pending search on the calling goroutine instead of waiting
// for the debounce delay. A search already started by the timer is not
// waited for.
func (w *Widget) Flush() {
	w.debouncer.Flush()
}

// Close cancels pending and in-flight searches and waits for them to
// return.
func (w *Widget) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.debouncer.Cancel()
	w.cancel()
	w.wg.Wait()
}

func (w *Widget) search() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.seq++
	seq := w.seq
	query := w.query
	w.wg.Add(1)
	defer w.wg.Done()

	if strings.TrimSpace(query) == "" {
		w.state.Suggestions = nil
		w.state.Open = false
		w.state.Loading = false
		w.state.Highlighted = -1
		w.unlockAndNotify()
		return
	}
	w.state.Loading = true
	w.unlockAndNotify()

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.Timeout)
	results, err := w.safeSearch(ctx, query)
	cancel()

	w.mu.Lock()
	if seq != w.seq || w.closed {
		w.mu.Unlock()
		w.log.Debug("dropping stale tag search", zap.String("query", query), zap.Uint64("seq", seq))
		return
	}
	w.state.Loading = false
	w.state.Highlighted = -1
	if err != nil {
		w.state.Suggestions = nil
		w.state.Open = false
		w.unlockAndNotify()
		w.log.Warn("tag search failed", zap.String("query", query), zap.Error(err))
		return
	}
	w.state.Suggestions = unselected(results, w.state.Selected)
	w.state.Open = len(w.state.Suggestions) > 0
	w.unlockAndNotify()
}

// safeSearch turns a panicking searcher into an error.
func (w *Widget) safeSearch(ctx context.Context, query string) (tags []Tag, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tag search panicked: %v", r)
		}
	}()
	return w.searcher.Search(ctx, query)
}

func unselected(results, selected []Tag) []Tag {
	var out []Tag
	for _, t := range results {
		taken := false
		for _, s := range selected {
			if s.ID == t.ID {
				taken = true
				break
			}
		}
		if !taken {
			out = append(out, t)
		}
	}
	return out
}

// Select adds tag to the selection and resets the input. It reports false
// when MaxTags has been reached or the tag is already selected.
func (w *Widget) Select(tag Tag) bool {
	w.mu.Lock()
	if w.opts.MaxTags > 0 && len(w.state.Selected) >= w.opts.MaxTags {
		w.mu.Unlock()
		return false
	}
	for _, s := range w.state.Selected {
		if s.ID == tag.ID {
			w.mu.Unlock()
			return false
		}
	}
	w.state.Selected = append(w.state.Selected, tag)
	w.state.Input = ""
	w.state.Suggestions = nil
	w.state.Open = false
	w.state.Highlighted = -1
	w.query = ""
	// Whatever is in flight was for the old input.
	w.seq++
	w.unlockAndNotify()

	w.debouncer.Cancel()
	return true
}

// Remove drops the selected tag with the given ID.
func (w *Widget) Remove(id string) {
	w.update(func(s *State) {
		kept := s.Selected[:0]
		for _, t := range s.Selected {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		s.Selected = kept
	})
}

// Key names as reported by the browser.
const (
	KeyArrowDown = "ArrowDown"
	KeyArrowUp   = "ArrowUp"
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeyBackspace = "Backspace"
)

// HandleKey applies keyboard navigation. It reports whether the key's
// default action should be suppressed.
func (w *Widget) HandleKey(key string) bool {
	w.mu.Lock()
	s := &w.state
	switch key {
	case KeyArrowDown:
		if s.Open && len(s.Suggestions) > 0 {
			if s.Highlighted < len(s.Suggestions)-1 {
				s.Highlighted++
			} else {
				s.Highlighted = 0
			}
		}
		w.unlockAndNotify()
		return true
	case KeyArrowUp:
		if s.Open && len(s.Suggestions) > 0 {
			if s.Highlighted > 0 {
				s.Highlighted--
			} else {
				s.Highlighted = len(s.Suggestions) - 1
			}
		}
		w.unlockAndNotify()
		return true
	case KeyEnter:
		if s.Open && s.Highlighted >= 0 && s.Highlighted < len(s.Suggestions) {
			tag := s.Suggestions[s.Highlighted]
			w.mu.Unlock()
			w.Select(tag)
			return true
		}
		w.mu.Unlock()
		return true
	case KeyEscape:
		s.Open = false
		s.Highlighted = -1
		w.unlockAndNotify()
		return false
	case KeyBackspace:
		if s.Input == "" && len(s.Selected) > 0 {
			s.Selected = s.Selected[:len(s.Selected)-1]
			w.unlockAndNotify()
			return false
		}
	}
	w.mu.Unlock()
	return false
}

func (w *Widget) update(fn func(*State)) {
	w.mu.Lock()
	fn(&w.state)
	w.unlockAndNotify()
}

// unlockAndNotify releases w.mu and reports the new state.
func (w *Widget) unlockAndNotify() {
	w.version++
	version := w.version
	snapshot := w.state.clone()
	w.mu.Unlock()
	if w.opts.OnChange == nil {
		return
	}

	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	if version <= w.delivered {
		return
	}
	w.delivered = version
	w.opts.OnChange(snapshot)
}
