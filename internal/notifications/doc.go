// Package notifications pushes route milestones to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Delivery failures are returned to the
// caller, which logs them; a failed notification never affects the route.
package notifications
