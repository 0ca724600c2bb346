// Package notifications publishes job outcomes to an ntfy topic.
//
// When no topic is configured NewService returns a no-op implementation, so
// callers never need to check whether notifications are enabled. Delivery
// failures are returned to the caller, which decides whether they matter;
// dubctl only logs them.
package notifications
