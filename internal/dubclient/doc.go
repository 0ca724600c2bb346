// Package dubclient talks to the remote dubbing service.
//
// Client covers every endpoint the service exposes: the multipart upload that
// starts a job, the server-sent-events status stream, the finished-artifact
// download, job cleanup, and the health probe. Submission failures are
// reported as *SubmissionError values whose Message is ready for display;
// other endpoints return *HTTPError for non-success responses.
//
// Subscribe never blocks on the network. The returned Subscription delivers
// decoded status payloads in arrival order on a channel that is closed when
// the stream ends, and Err reports why it ended. Malformed frames are logged
// and dropped without ending the stream.
package dubclient
