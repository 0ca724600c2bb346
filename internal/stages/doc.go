// Package stages holds the ordered catalog of dubbing pipeline stages and the
// projector that turns a flat status payload into per-stage visual state.
//
// The catalog order is the pipeline's progression order. Projection relies
// on it exclusively: the service reports a single current step and the
// projector colours every stage by its position relative to that step.
package stages
