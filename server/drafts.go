package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bug_stomper/editor"
	"bug_stomper/markdown"
)

// draft is one editing session of the ask page. The browser reports its
// textarea state and the server keeps the undo history.
type draft struct {
	userID string

	mu      sync.Mutex
	buf     *editor.Buffer
	ed      *editor.Editor
	touched time.Time
}

// maxDraftsPerUser bounds the live drafts of one user; creating another
// evicts the least recently used.
const maxDraftsPerUser = 10

type draftStore struct {
	mu     sync.Mutex
	drafts map[string]*draft
	limit  int
	ttl    time.Duration
	now    func() time.Time
}

func newDraftStore(limit int, ttl time.Duration) *draftStore {
	return &draftStore{drafts: make(map[string]*draft), limit: limit, ttl: ttl, now: time.Now}
}

func (s *draftStore) create(userID, content string) (string, *draft) {
	buf := editor.NewBuffer(content)
	d := &draft{userID: userID, buf: buf, ed: editor.New(buf, s.limit)}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var (
		owned   int
		oldest  string
		oldestT time.Time
	)
	for id, old := range s.drafts {
		touched := old.lastTouched()
		if now.Sub(touched) > s.ttl {
			delete(s.drafts, id)
			continue
		}
		if old.userID != userID {
			continue
		}
		owned++
		if oldest == "" || touched.Before(oldestT) {
			oldest, oldestT = id, touched
		}
	}
	if owned >= maxDraftsPerUser {
		delete(s.drafts, oldest)
	}
	d.touched = now
	id := uuid.NewString()
	s.drafts[id] = d
	return id, d
}

// get returns the draft only to the user who created it.
func (s *draftStore) get(id, userID string) (*draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok || d.userID != userID {
		return nil, false
	}
	d.mu.Lock()
	d.touched = s.now()
	d.mu.Unlock()
	return d, true
}

func (s *draftStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

func (d *draft) lastTouched() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.touched
}

type draftResp struct {
	ID       string          `json:"id"`
	Snapshot editor.Snapshot `json:"snapshot"`
	CanUndo  bool            `json:"canUndo"`
	CanRedo  bool            `json:"canRedo"`
	// Changed reports whether the request produced a new history entry or
	// moved the cursor.
	Changed bool   `json:"changed"`
	Preview string `json:"preview,omitempty"`
}

// respLocked describes d. d.mu must be held.
func (d *draft) respLocked(id string, changed, preview bool) draftResp {
	start, end := d.buf.Selection()
	resp := draftResp{
		ID: id,
		Snapshot: editor.Snapshot{
			Content:        d.buf.Text(),
			SelectionStart: start,
			SelectionEnd:   end,
		},
		CanUndo: d.ed.History().CanUndo(),
		CanRedo: d.ed.History().CanRedo(),
		Changed: changed,
	}
	if preview {
		resp.Preview = markdown.Render(resp.Snapshot.Content)
	}
	return resp
}

type draftCreateReq struct {
	Content string `json:"content"`
}

func (s *Server) handleDraftCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req draftCreateReq
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	id, d := s.drafts.create(user.ID, req.Content)
	s.log.Debug("draft created", zap.String("draft_id", id), zap.String("user_id", user.ID))

	d.mu.Lock()
	resp := d.respLocked(id, false, true)
	d.mu.Unlock()
	writeJSON(w, http.StatusCreated, resp)
}

// withDraft runs fn on the draft named in the path with its lock held.
func (s *Server) withDraft(w http.ResponseWriter, r *http.Request, fn func(d *draft) (changed bool, err error)) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	d, ok := s.drafts.get(id, user.ID)
	if !ok {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	changed, err := fn(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.respLocked(id, changed, true))
}

func (s *Server) handleDraftGet(w http.ResponseWriter, r *http.Request) {
	s.withDraft(w, r, func(*draft) (bool, error) { return false, nil })
}

type draftChangeReq struct {
	Content        string `json:"content"`
	SelectionStart int    `json:"selectionStart"`
	SelectionEnd   int    `json:"selectionEnd"`
}

func (s *Server) handleDraftChange(w http.ResponseWriter, r *http.Request) {
	var req draftChangeReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withDraft(w, r, func(d *draft) (bool, error) {
		d.buf.SetText(req.Content)
		d.buf.Select(req.SelectionStart, req.SelectionEnd)
		return d.ed.Changed(), nil
	})
}

func (s *Server) handleDraftUndo(w http.ResponseWriter, r *http.Request) {
	s.withDraft(w, r, func(d *draft) (bool, error) { return d.ed.Undo(), nil })
}

func (s *Server) handleDraftRedo(w http.ResponseWriter, r *http.Request) {
	s.withDraft(w, r, func(d *draft) (bool, error) { return d.ed.Redo(), nil })
}

type draftFormatReq struct {
	Action         string `json:"action"`
	SelectionStart int    `json:"selectionStart"`
	SelectionEnd   int    `json:"selectionEnd"`
}

func (s *Server) handleDraftFormat(w http.ResponseWriter, r *http.Request) {
	var req draftFormatReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, err := editor.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withDraft(w, r, func(d *draft) (bool, error) {
		d.buf.Select(req.SelectionStart, req.SelectionEnd)
		if err := d.ed.Apply(action); err != nil {
			return false, errors.Join(errors.New("format failed"), err)
		}
		return true, nil
	})
}
