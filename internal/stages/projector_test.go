package stages

import (
	"reflect"
	"testing"

	"dubctl/internal/api"
)

func TestProjectNilStatusAllPending(t *testing.T) {
	for _, view := range Project(Default(), nil) {
		if view.State != StatePending {
			t.Fatalf("stage %s: expected pending, got %s", view.Key, view.State)
		}
	}
}

func TestProjectRunningStep(t *testing.T) {
	status := &api.StatusPayload{Status: api.JobStatusRunning, Step: "transcribing", Progress: 50}
	got := Project(Default(), status).Map()
	want := map[string]VisualState{
		"ingesting":    StateCompleted,
		"separating":   StateCompleted,
		"transcribing": StateActive,
		"translating":  StatePending,
		"synthesizing": StatePending,
		"mixing":       StatePending,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("projection mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestProjectFailedStep(t *testing.T) {
	status := &api.StatusPayload{Status: api.JobStatusFailed, Step: "translating", Message: "Error: quota"}
	p := Project(Default(), status)
	if p.State("separating") != StateCompleted {
		t.Fatalf("expected separating completed, got %s", p.State("separating"))
	}
	if p.State("translating") != StateFailed {
		t.Fatalf("expected translating failed, got %s", p.State("translating"))
	}
	if p.State("mixing") != StatePending {
		t.Fatalf("expected mixing pending, got %s", p.State("mixing"))
	}
	current, ok := p.Current()
	if !ok || current.Key != "translating" {
		t.Fatalf("expected current stage translating, got %+v ok=%v", current, ok)
	}
}

func TestProjectUnknownStepTreatedAsBeforeAll(t *testing.T) {
	for _, step := range []string{"", "queued", "starting", "downloading"} {
		for _, status := range []api.JobStatus{api.JobStatusRunning, api.JobStatusFailed} {
			p := Project(Default(), &api.StatusPayload{Status: status, Step: step})
			for _, view := range p {
				if view.State != StatePending {
					t.Fatalf("step %q status %s: stage %s expected pending, got %s", step, status, view.Key, view.State)
				}
			}
			if _, ok := p.Current(); ok {
				t.Fatalf("step %q: expected no current stage", step)
			}
		}
	}
}

func TestProjectCompletedMarksEveryStage(t *testing.T) {
	status := &api.StatusPayload{Status: api.JobStatusCompleted, Step: "mixing", Progress: 100, Message: "Done"}
	for _, view := range Project(Default(), status) {
		if view.State != StateCompleted {
			t.Fatalf("stage %s: expected completed, got %s", view.Key, view.State)
		}
	}
}

func TestProjectPartitionInvariant(t *testing.T) {
	catalog := Default()
	for idx, key := range catalog.Keys() {
		for _, status := range []api.JobStatus{api.JobStatusRunning, api.JobStatusProcessing, api.JobStatusFailed} {
			p := Project(catalog, &api.StatusPayload{Status: status, Step: key})
			current := 0
			for i, view := range p {
				switch {
				case i < idx && view.State != StateCompleted:
					t.Fatalf("%s/%s: stage %s before step should be completed, got %s", status, key, view.Key, view.State)
				case i > idx && view.State != StatePending:
					t.Fatalf("%s/%s: stage %s after step should be pending, got %s", status, key, view.Key, view.State)
				}
				if view.State == StateActive || view.State == StateFailed {
					current++
				}
			}
			if current != 1 {
				t.Fatalf("%s/%s: expected exactly one active or failed stage, got %d", status, key, current)
			}
		}
	}
}

func TestProjectDeterministic(t *testing.T) {
	status := &api.StatusPayload{Status: api.JobStatusRunning, Step: "synthesizing", Progress: 80}
	first := Project(Default(), status)
	for i := 0; i < 10; i++ {
		if next := Project(Default(), status); !reflect.DeepEqual(first, next) {
			t.Fatalf("projection changed between calls: %v vs %v", first, next)
		}
	}
}
