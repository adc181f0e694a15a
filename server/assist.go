package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bug_stomper/assistant"
)

const reviseTimeout = 60 * time.Second

// reviseSession is an assistant session owned by one user.
type reviseSession struct {
	*assistant.Session
	userID  string
	touched time.Time
}

type reviseStore struct {
	mu       sync.Mutex
	sessions map[string]*reviseSession
	ttl      time.Duration
	now      func() time.Time
}

func newReviseStore(ttl time.Duration) *reviseStore {
	return &reviseStore{sessions: make(map[string]*reviseSession), ttl: ttl, now: time.Now}
}

func (s *reviseStore) add(sess *reviseSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, old := range s.sessions {
		if now.Sub(old.touched) > s.ttl {
			delete(s.sessions, id)
		}
	}
	sess.touched = now
	s.sessions[sess.ID] = sess
}

// get returns the session when it belongs to userID.
func (s *reviseStore) get(id, userID string) (*reviseSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.userID != userID {
		return nil, false
	}
	sess.touched = s.now()
	return sess, true
}

type reviseResp struct {
	ID      string           `json:"id"`
	Draft   assistant.Draft  `json:"draft"`
	History []assistant.Turn `json:"history"`
}

type reviseStartReq struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleReviseStart(w http.ResponseWriter, r *http.Request) {
	if s.reviser == nil {
		writeError(w, http.StatusNotFound, "Question assistant is not configured")
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req reviseStartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Title or content is required")
		return
	}

	sess := &reviseSession{
		Session: assistant.NewSession(uuid.NewString(), req.Title, req.Content, s.reviser),
		userID:  user.ID,
	}
	ctx, cancel := context.WithTimeout(r.Context(), reviseTimeout)
	defer cancel()
	d, err := sess.Propose(ctx)
	if err != nil {
		s.log.Warn("assistant proposal failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "The assistant could not improve the question")
		return
	}
	s.revisions.add(sess)
	writeJSON(w, http.StatusCreated, reviseResp{ID: sess.ID, Draft: d, History: sess.History()})
}

type reviseReq struct {
	Comment string `json:"comment"`
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	if s.reviser == nil {
		writeError(w, http.StatusNotFound, "Question assistant is not configured")
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	sess, ok := s.revisions.get(r.PathValue("id"), user.ID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	var req reviseReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		writeError(w, http.StatusBadRequest, "Comment is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reviseTimeout)
	defer cancel()
	d, err := sess.Revise(ctx, req.Comment)
	if err != nil {
		s.log.Warn("assistant revision failed", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "The assistant could not revise the question")
		return
	}
	writeJSON(w, http.StatusOK, reviseResp{ID: sess.ID, Draft: d, History: sess.History()})
}
