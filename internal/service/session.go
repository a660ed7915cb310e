package service

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/user-management/internal/form"
	"gitlab.com/dirk.krummacker/user-management/internal/store"
)

// sessionKey is the gin context key of the current session.
const sessionKey = "session"

// DefaultSessionIdle is how long an unused session stays in memory.
const DefaultSessionIdle = 30 * time.Minute

// session holds the store and the id counter of one client session. Requests of the same
// session are serialized through mu.
type session struct {
	mu    sync.Mutex
	id    string
	store *store.Store
	ids   *form.IDAllocator

	// closed is set under mu once the session ended or was evicted. A request that gets the
	// lock of a closed session must look the session up again.
	closed bool

	// active and lastUsed are guarded by Service.mu.
	active   int
	lastUsed time.Time
}

// withSession is a middleware that looks up the session named by the session cookie, or
// starts a new one, and holds its lock until the request is done.
func (s *Service) withSession(c *gin.Context) {
	id, err := c.Cookie(s.cookie)
	if _, errParse := uuid.Parse(id); err != nil || errParse != nil {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cookie, id, 0, "/", "", false, true)
	}
	for {
		sess := s.acquire(c, id)
		sess.mu.Lock()
		if sess.closed {
			sess.mu.Unlock()
			s.release(sess)
			continue
		}
		defer s.release(sess)
		defer sess.mu.Unlock()
		c.Set(sessionKey, sess)
		c.Next()
		return
	}
}

// acquire returns the session with the given id and marks it as in use. A session not yet
// known to this process is created and its store rehydrated from the session storage.
func (s *Service) acquire(c *gin.Context, id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	sess, ok := s.sessions[id]
	if !ok {
		backing := s.storage.Session(id)
		sess = &session{
			id: id,
			store: store.New(c.Request.Context(), store.StoreArgs{
				Storage:   backing,
				Validator: s.validator,
				Logger:    s.log.WithField("session", id),
			}),
			ids: form.NewIDAllocator(backing),
		}
		s.sessions[id] = sess
	}
	sess.active++
	sess.lastUsed = now
	return sess
}

// release marks the end of a request of the session.
func (s *Service) release(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.active--
	sess.lastUsed = s.now()
}

// sweep drops sessions that have no request in flight and were idle for longer than the idle
// timeout. It runs at most once per idle timeout. Their data stays in the session storage and
// is rehydrated on the next request. Must be called with s.mu held.
func (s *Service) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.idle {
		return
	}
	s.lastSweep = now
	for id, sess := range s.sessions {
		if sess.active == 0 && now.Sub(sess.lastUsed) > s.idle {
			delete(s.sessions, id)
			s.log.WithField("session", id).Debug("evicted idle session")
		}
	}
}

// end marks the session as closed and drops it from the registry. Must be called with
// sess.mu held.
func (s *Service) end(sess *session) {
	sess.closed = true
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
}

// currentSession returns the session attached by withSession.
func currentSession(c *gin.Context) *session {
	return c.MustGet(sessionKey).(*session)
}
