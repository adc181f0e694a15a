package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bug_stomper/auth"
	"bug_stomper/store"
)

func (s *Server) actionSignIn(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	_, err := s.auth.SignIn(r.Context(), w, email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		flash(w, r, "/signin", "", sentence(err), false)
		return
	}
	if err != nil {
		s.log.Error("sign in", zap.Error(err))
		flash(w, r, "/signin", "", genericError, false)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) actionSignUp(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	_, err := s.auth.SignUp(r.Context(), email, password, r.FormValue("confirmPassword"))
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordMismatch), errors.Is(err, store.ErrEmailTaken):
		flash(w, r, "/signup", "", sentence(err), false)
		return
	case err != nil:
		s.log.Error("sign up", zap.Error(err))
		flash(w, r, "/signup", "", genericError, false)
		return
	}
	if _, err := s.auth.SignIn(r.Context(), w, email, password); err != nil {
		s.log.Error("sign in after sign up", zap.Error(err))
		flash(w, r, "/signin", "", "Account created. Please sign in.", true)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) actionSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), w, r); err != nil {
		s.log.Warn("sign out", zap.Error(err))
	}
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

// questionPath rebuilds the page path from the hidden form fields.
func questionPath(r *http.Request) string {
	return fmt.Sprintf("/questions/%s_%s", r.FormValue("questionId"), r.FormValue("questionSlug"))
}

func formID(r *http.Request, field string) (int64, bool) {
	id, err := strconv.ParseInt(r.FormValue(field), 10, 64)
	return id, err == nil && id > 0
}

// actionUser returns the signed-in user or redirects to the sign-in page
// with msg.
func (s *Server) actionUser(w http.ResponseWriter, r *http.Request, msg string) (*store.User, bool) {
	u := s.optionalUser(r)
	if u == nil {
		flash(w, r, "/signin", "", msg, false)
		return nil, false
	}
	return u, true
}

func (s *Server) actionSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	back := questionPath(r)
	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		flash(w, r, back, "answer", "Answer content cannot be empty", false)
		return
	}
	questionID, ok := formID(r, "questionId")
	if !ok {
		flash(w, r, back, "answer", "Invalid request parameters", false)
		return
	}
	user, ok := s.actionUser(w, r, "You must be signed in to submit an answer")
	if !ok {
		return
	}
	if _, err := s.store.CreateAnswer(r.Context(), questionID, user.ID, content); err != nil {
		s.log.Error("submit answer", zap.Int64("question_id", questionID), zap.Error(err))
		flash(w, r, back, "answer", "Failed to submit answer. Please try again.", false)
		return
	}
	flash(w, r, back, "answer", "Answer submitted successfully!", true)
}

func (s *Server) actionDeleteAnswer(w http.ResponseWriter, r *http.Request) {
	back := questionPath(r)
	answerID, ok := formID(r, "answerId")
	if !ok {
		flash(w, r, back, "answer", "Invalid request parameters", false)
		return
	}
	user, ok := s.actionUser(w, r, "You must be signed in to delete an answer")
	if !ok {
		return
	}
	err := s.store.DeleteAnswer(r.Context(), answerID, user.ID)
	switch {
	case errors.Is(err, store.ErrForbidden):
		flash(w, r, back, "answer", "You are not authorized to delete this answer", false)
	case errors.Is(err, store.ErrNotFound):
		flash(w, r, back, "answer", "Answer not found", false)
	case err != nil:
		s.log.Error("delete answer", zap.Int64("answer_id", answerID), zap.Error(err))
		flash(w, r, back, "answer", genericError, false)
	default:
		flash(w, r, back, "answer", "Answer deleted successfully!", true)
	}
}

func (s *Server) actionMarkAnswer(w http.ResponseWriter, r *http.Request) {
	back := questionPath(r)
	answerID, ok := formID(r, "answerId")
	if !ok {
		flash(w, r, back, "answer", "Invalid request parameters", false)
		return
	}
	user, ok := s.actionUser(w, r, "You must be signed in to mark or unmark an answer.")
	if !ok {
		return
	}
	marked := r.FormValue("marked") == "true"
	err := s.store.MarkAnswer(r.Context(), answerID, user.ID, marked)
	switch {
	case errors.Is(err, store.ErrForbidden):
		flash(w, r, back, "answer", "Only the author of the question can mark answers", false)
	case errors.Is(err, store.ErrNotFound):
		flash(w, r, back, "answer", "Answer not found", false)
	case err != nil:
		s.log.Error("mark answer", zap.Int64("answer_id", answerID), zap.Error(err))
		flash(w, r, back, "answer", "Failed to update answer status. Please try again.", false)
	default:
		flash(w, r, back, "answer", "Answer status updated successfully!", true)
	}
}

func (s *Server) actionSubmitComment(w http.ResponseWriter, r *http.Request) {
	back := questionPath(r)
	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		flash(w, r, back, "comment", "Comment content cannot be empty", false)
		return
	}
	answerID, ok := formID(r, "answerId")
	if !ok {
		flash(w, r, back, "comment", "Answer ID is required", false)
		return
	}
	user, ok := s.actionUser(w, r, "You must be signed in to submit a comment")
	if !ok {
		return
	}
	if _, err := s.store.CreateComment(r.Context(), answerID, user.ID, content); err != nil {
		s.log.Error("submit comment", zap.Int64("answer_id", answerID), zap.Error(err))
		flash(w, r, back, "comment", genericError, false)
		return
	}
	flash(w, r, back, "comment", "Comment submitted successfully!", true)
}

func (s *Server) actionUpdateComment(w http.ResponseWriter, r *http.Request) {
	back := questionPath(r)
	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		flash(w, r, back, "comment", "Comment content cannot be empty", false)
		return
	}
	commentID, ok := formID(r, "commentId")
	if !ok {
		flash(w, r, back, "comment", "Comment ID is required", false)
		return
	}
	user, ok := s.actionUser(w, r, "You must be signed in to update a comment")
	if !ok {
		return
	}
	err := s.store.UpdateComment(r.Context(), commentID, user.ID, content)
	switch {
	case errors.Is(err, store.ErrNotFound):
		flash(w, r, back, "comment", "Comment not found", false)
	case errors.Is(err, store.ErrForbidden):
		flash(w, r, back, "comment", "You can only edit your own comments", false)
	case err != nil:
		s.log.Error("update comment", zap.Int64("comment_id", commentID), zap.Error(err))
		flash(w, r, back, "comment", genericError, false)
	default:
		flash(w, r, back, "comment", "Comment updated successfully!", true)
	}
}

func (s *Server) actionDeleteComment(w http.ResponseWriter, r *http.Request) {
	back := questionPath(r)
	commentID, ok := formID(r, "commentId")
	if !ok {
		flash(w, r, back, "comment", "Comment ID is required", false)
		return
	}
	user, ok := s.actionUser(w, r, "You must be signed in to delete a comment")
	if !ok {
		return
	}
	err := s.store.DeleteComment(r.Context(), commentID, user.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		flash(w, r, back, "comment", "Comment not found", false)
	case errors.Is(err, store.ErrForbidden):
		flash(w, r, back, "comment", "You can only delete your own comments", false)
	case err != nil:
		s.log.Error("delete comment", zap.Int64("comment_id", commentID), zap.Error(err))
		flash(w, r, back, "comment", genericError, false)
	default:
		flash(w, r, back, "comment", "Comment deleted successfully!", true)
	}
}
