// Package preflight provides readiness checks for the dubbing service and the
// filesystem paths dubctl writes to.
//
// These checks run in two contexts:
//   - `dubctl health` prints every result as a table.
//   - `dubctl dub` runs RunAll before uploading and refuses to start when the
//     service is unreachable, so a large upload is never attempted against a
//     dead endpoint.
package preflight
