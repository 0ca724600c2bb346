// Package main hosts the dubctl CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into dubbing
// service calls: uploading a video and following its job to completion,
// reattaching to a running job, downloading and cleaning up results, and
// probing service health. It centralizes configuration resolution, client
// construction, and structured logging setup so subcommands can focus on
// rendering.
//
// Keep this package lean: job lifecycle rules live in internal/session and
// wire details in internal/dubclient. Commands here only drive them and draw
// what they report.
package main
