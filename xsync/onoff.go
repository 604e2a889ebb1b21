package xsync

import "sync"

// OnOffSwitch is a level-triggered signal used by wait_any/wait_all style
// calls: a waiter parks in WaitForOn until some other goroutine calls On.
type OnOffSwitch struct {
	mu   sync.Mutex
	cond *sync.Cond
	on   bool
}

// NewOnOffSwitch returns a switch initially Off.
func NewOnOffSwitch() *OnOffSwitch {
	s := &OnOffSwitch{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// On sets the switch and wakes every waiter.
func (s *OnOffSwitch) On() {
	s.mu.Lock()
	s.on = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Off clears the switch.
func (s *OnOffSwitch) Off() {
	s.mu.Lock()
	s.on = false
	s.mu.Unlock()
}

// IsOn reports the current state without blocking.
func (s *OnOffSwitch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// WaitForOn blocks until the switch is On.
func (s *OnOffSwitch) WaitForOn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.on {
		s.cond.Wait()
	}
}
