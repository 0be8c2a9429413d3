// Package session holds the per-client state that survives between requests:
// the authenticated user id and pending flash messages. The state travels to
// the client as a signed token in a cookie, so the server keeps nothing.
package session

import "slices"

// Session is the decoded state of one client. It is not safe for concurrent use.
type Session struct {
	userID   int64
	hasUser  bool
	flashes  []string
	modified bool
}

// New returns an empty, anonymous session.
func New() *Session {
	return &Session{}
}

// UserID returns the bound user id, if any.
func (s *Session) UserID() (int64, bool) {
	return s.userID, s.hasUser
}

// SetUserID binds the session to a user.
func (s *Session) SetUserID(id int64) {
	s.userID = id
	s.hasUser = true
	s.modified = true
}

// DeleteUserID unbinds the user and keeps everything else.
func (s *Session) DeleteUserID() {
	if !s.hasUser {
		return
	}

	s.userID = 0
	s.hasUser = false
	s.modified = true
}

// Clear removes all state, flashes included.
func (s *Session) Clear() {
	if s.Empty() {
		return
	}

	s.userID = 0
	s.hasUser = false
	s.flashes = nil
	s.modified = true
}

// Flash queues a message to be shown on the next rendered page.
func (s *Session) Flash(msg string) {
	s.flashes = append(s.flashes, msg)
	s.modified = true
}

// PopFlashes returns and removes the queued messages.
func (s *Session) PopFlashes() []string {
	if len(s.flashes) == 0 {
		return []string{}
	}

	flashes := s.flashes
	s.flashes = nil
	s.modified = true

	return flashes
}

// Flashes returns the queued messages without removing them.
func (s *Session) Flashes() []string {
	return slices.Clone(s.flashes)
}

// Empty reports whether the session carries no state.
func (s *Session) Empty() bool {
	return !s.hasUser && len(s.flashes) == 0
}

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool {
	return s.modified
}
