package service

import (
	"container/list"
	"math/rand"
	"sync"

	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/internal/domain/model"
)

// session is the per-owner comparison state. mu serializes every read-modify-
// write of the owner's population.
type session struct {
	mu       sync.Mutex
	selector *elo.Selector
	pending  map[string]model.Matchup
	order    []string // pending ids, oldest first

	// guarded by sessionSet.mu
	owner string
	refs  int
	elem  *list.Element
}

func newSession(owner string, cfg elo.Config, src *rand.Rand, observe elo.Observer) *session {
	opts := append(cfg.SelectorOptions(src), elo.WithObserver(observe))
	return &session{
		selector: elo.NewSelector(opts...),
		pending:  make(map[string]model.Matchup),
		owner:    owner,
	}
}

// sessionSet holds at most max sessions, most recently used first. Only
// sessions nobody holds are evicted, so an owner never has two sessions
// in use at once.
type sessionSet struct {
	mu    sync.Mutex
	max   int
	byID  map[string]*session
	order *list.List
}

func newSessionSet(maxSessions int) *sessionSet {
	return &sessionSet{
		max:   maxSessions,
		byID:  make(map[string]*session),
		order: list.New(),
	}
}

// acquire returns the owner's session, creating it with create, and pins it
// until release. evicted lists sessions dropped to stay within max.
func (ss *sessionSet) acquire(owner string, create func() *session) (sess *session, evicted []*session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	sess, ok := ss.byID[owner]
	if ok {
		ss.order.MoveToFront(sess.elem)
	} else {
		sess = create()
		sess.elem = ss.order.PushFront(sess)
		ss.byID[owner] = sess
	}
	sess.refs++

	for e := ss.order.Back(); e != nil && len(ss.byID) > ss.max; {
		prev := e.Prev()
		if old := e.Value.(*session); old.refs == 0 {
			ss.order.Remove(e)
			delete(ss.byID, old.owner)
			evicted = append(evicted, old)
		}
		e = prev
	}
	return sess, evicted
}

func (ss *sessionSet) release(sess *session) {
	ss.mu.Lock()
	sess.refs--
	ss.mu.Unlock()
}

// drop removes sess if the caller holds the only reference to it.
func (ss *sessionSet) drop(sess *session) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if sess.refs != 1 || ss.byID[sess.owner] != sess {
		return false
	}
	ss.order.Remove(sess.elem)
	delete(ss.byID, sess.owner)
	return true
}

func (ss *sessionSet) len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.byID)
}

// issue records m and returns how many pending matchups were discarded to
// stay within limit.
func (s *session) issue(m model.Matchup, limit int) int {
	s.pending[m.ID] = m
	s.order = append(s.order, m.ID)
	dropped := 0
	for len(s.order) > limit {
		delete(s.pending, s.order[0])
		s.order = s.order[1:]
		dropped++
	}
	return dropped
}

// take removes and returns the matchup id.
func (s *session) take(id string) (model.Matchup, bool) {
	m, ok := s.pending[id]
	if !ok {
		return model.Matchup{}, false
	}
	delete(s.pending, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return m, true
}

// reset forgets pending matchups and the recent window and returns how many
// matchups were pending.
func (s *session) reset() int {
	n := len(s.pending)
	s.pending = make(map[string]model.Matchup)
	s.order = nil
	s.selector.Window().Reset()
	return n
}
