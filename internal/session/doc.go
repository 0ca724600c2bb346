// Package session owns the lifecycle of one dubbing job attempt.
//
// Machine is the only writer of session state. It moves through
// Idle -> Submitting -> Streaming -> Completed | Failed, owns the single live
// status subscription, and feeds stream payloads into its transition function
// one at a time in arrival order. Every transition bumps or checks an attempt
// generation so goroutines left over from an earlier attempt can never touch
// newer state.
//
// A transport error before any terminal payload leaves the machine in Failed
// with Interrupted set and the last payload still in place, so a renderer
// keeps showing the stage that was running when the connection dropped.
//
// Lock guards against two dubctl sessions sharing one state directory.
package session
