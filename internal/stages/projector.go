package stages

import "dubctl/internal/api"

// VisualState is the display state assigned to a stage.
type VisualState string

const (
	StatePending   VisualState = "pending"
	StateActive    VisualState = "active"
	StateCompleted VisualState = "completed"
	StateFailed    VisualState = "failed"
)

// StageView pairs a stage definition with its derived visual state.
type StageView struct {
	Definition
	State VisualState `json:"state"`
}

// Projection is the per-stage view in catalog order.
type Projection []StageView

// State returns the visual state of key, or StatePending for unknown keys.
func (p Projection) State(key string) VisualState {
	for _, view := range p {
		if view.Key == key {
			return view.State
		}
	}
	return StatePending
}

// Map returns the projection keyed by stage key.
func (p Projection) Map() map[string]VisualState {
	out := make(map[string]VisualState, len(p))
	for _, view := range p {
		out[view.Key] = view.State
	}
	return out
}

// Current returns the stage that is active or failed, if any.
func (p Projection) Current() (StageView, bool) {
	for _, view := range p {
		if view.State == StateActive || view.State == StateFailed {
			return view, true
		}
	}
	return StageView{}, false
}

// Project derives every stage's visual state from the current status.
// It has no side effects and never inspects anything but its arguments.
//
// Stages before the reported step are completed, the step itself is active
// (failed when the job failed) and later stages are pending. A step outside
// the catalog sits before every stage. A completed job marks every stage
// completed.
func Project(catalog Catalog, status *api.StatusPayload) Projection {
	out := make(Projection, len(catalog))
	for i, def := range catalog {
		out[i] = StageView{Definition: def, State: StatePending}
	}
	if status == nil {
		return out
	}
	if status.Status == api.JobStatusCompleted {
		for i := range out {
			out[i].State = StateCompleted
		}
		return out
	}

	stepIndex := catalog.Index(status.Step)
	if stepIndex < 0 {
		return out
	}
	current := StateActive
	if status.Status == api.JobStatusFailed {
		current = StateFailed
	}
	for i := range out {
		switch {
		case i < stepIndex:
			out[i].State = StateCompleted
		case i == stepIndex:
			out[i].State = current
		}
	}
	return out
}
