// Package api defines the wire-format types and endpoint paths of the remote
// dubbing service.
//
// # Key Types
//
// StatusPayload: the flat status object carried by every status stream event.
// Each payload fully replaces the previous one; the client never merges them.
//
// SubmitResponse/ErrorResponse: bodies returned by the upload endpoint.
//
// HealthResponse/CleanupResponse: bodies of the auxiliary endpoints.
//
// # Design Notes
//
// JSON tags use the service's snake_case names. Step values are stage keys
// from the stage catalog, but the service also reports bookkeeping steps such
// as "queued" and "starting"; consumers must treat an unknown step as "no
// stage matched" rather than as an error.
package api
