package task

import "errors"

// ErrAlreadyConsumed is raised when Await or Discard is called a second
// time on a task handle, or when Await, Join, or Discard is called on a
// zero-value handle. Join itself never consumes a handle and may be called
// any number of times. Go has no move-only types to catch this at
// compile time, so the runtime enforces it with a panic instead of
// corrupting frame state.
var ErrAlreadyConsumed = errors.New("task: already awaited, joined, or discarded")

// ErrUnsupportedEvent is returned by a Scheduler whose platform has no
// event-multiplexing backend when ScheduleEvent is called anyway.
var ErrUnsupportedEvent = errors.New("task: event awaiting is not supported on this platform")
