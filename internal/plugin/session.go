// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

// Session is the active-unit selection: Idle or Active(name).
// It is not safe for concurrent use; the Registry guards it.
type Session struct {
	active string
	set    bool
}

// Active returns the selected unit name and whether one is selected.
func (s *Session) Active() (string, bool) {
	return s.active, s.set
}

// Select transitions to Active(name).
func (s *Session) Select(name string) {
	s.active = name
	s.set = true
}

// Reset transitions to Idle and returns the previous selection.
func (s *Session) Reset() (string, bool) {
	prev, had := s.active, s.set
	s.active = ""
	s.set = false
	return prev, had
}
