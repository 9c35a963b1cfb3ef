package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionCookie = "adwin_session"
	sessionTTL    = 7 * 24 * time.Hour
)

// sessions is an in-memory session store. Sessions do not survive a
// restart; operators just log in again.
type sessions struct {
	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
}

func newSessions() *sessions {
	return &sessions{tokens: make(map[string]time.Time)}
}

// create mints a token and returns it.
func (s *sessions) create() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = time.Now().Add(sessionTTL)
	s.mu.Unlock()
	return token
}

// valid checks the token and prunes it when expired.
func (s *sessions) valid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.tokens, token)
		return false
	}
	return true
}

func (s *sessions) revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// authenticated reports whether the request carries a live session.
func (s *sessions) authenticated(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	return s.valid(c.Value)
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL / time.Second),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
