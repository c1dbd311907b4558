// Package notifytest provides a Publisher that records events for tests.
package notifytest

import "sync"

type Event struct {
	UserID  int
	Name    string
	Payload any
}

type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(userID int, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{UserID: userID, Name: event, Payload: payload})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}
