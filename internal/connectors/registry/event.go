package registry

import "time"

// UnknownTotal marks an Event whose total is not known in advance.
const UnknownTotal int64 = -1

type Reporter interface {
	Report(Event)
}

// Event is a progress notification from a sync pass or startup task.
type Event struct {
	Source  string
	Stage   string
	Current int64
	Total   int64
	Message string
	Done    bool
	Err     error
	At      time.Time
}
