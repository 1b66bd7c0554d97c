package net

import "sort"

// SessionStore holds every live session. Game loop only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session) {
	st.sessions[s.ID] = s
}

func (st *SessionStore) Remove(id uint64) {
	delete(st.sessions, id)
}

func (st *SessionStore) Get(id uint64) *Session {
	return st.sessions[id]
}

func (st *SessionStore) Count() int {
	return len(st.sessions)
}

// Sessions returns a snapshot in id order; callers may Remove while ranging.
func (st *SessionStore) Sessions() []*Session {
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForEach visits sessions in id order.
func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, s := range st.Sessions() {
		fn(s)
	}
}

// CloseAll closes every session.
func (st *SessionStore) CloseAll() {
	for _, s := range st.sessions {
		s.Close()
	}
}
