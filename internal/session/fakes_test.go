package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dubctl/internal/api"
	"dubctl/internal/artifact"
	"dubctl/internal/language"
	"dubctl/internal/session"
	"dubctl/internal/testsupport"
)

type fakeStream struct {
	mu      sync.Mutex
	updates chan api.StatusPayload
	done    chan struct{}
	err     error
	ended   bool
	closed  bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		updates: make(chan api.StatusPayload, 16),
		done:    make(chan struct{}),
	}
}

func (s *fakeStream) Updates() <-chan api.StatusPayload { return s.updates }
func (s *fakeStream) Done() <-chan struct{}             { return s.done }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.end(nil)
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) send(p api.StatusPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.updates <- p
}

func (s *fakeStream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.updates)
	close(s.done)
}

type submitResult struct {
	jobID string
	err   error
}

type fakeService struct {
	mu         sync.Mutex
	results    []submitResult
	submits    int
	gate       chan struct{}
	streams    map[string][]*fakeStream
	subscribes []string
	targets    []language.Target
}

func newFakeService(results ...submitResult) *fakeService {
	return &fakeService{results: results, streams: map[string][]*fakeStream{}}
}

func (f *fakeService) Submit(ctx context.Context, art *artifact.Artifact, target language.Target) (string, error) {
	f.mu.Lock()
	gate := f.gate
	f.submits++
	f.targets = append(f.targets, target)
	var res submitResult
	if len(f.results) > 0 {
		res = f.results[0]
		f.results = f.results[1:]
	} else {
		res = submitResult{err: errors.New("no scripted result")}
	}
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return res.jobID, res.err
}

func (f *fakeService) Subscribe(_ context.Context, jobID string) (session.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stream := newFakeStream()
	f.streams[jobID] = append(f.streams[jobID], stream)
	f.subscribes = append(f.subscribes, jobID)
	return stream, nil
}

func (f *fakeService) DownloadURL(jobID string) string {
	return "http://service.test/api/download/" + jobID
}

func (f *fakeService) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func (f *fakeService) target(i int) language.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targets[i]
}

func (f *fakeService) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes)
}

// stream waits for the n-th subscription of jobID (0-based).
func (f *fakeService) stream(t *testing.T, jobID string, n int) *fakeStream {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		streams := f.streams[jobID]
		f.mu.Unlock()
		if len(streams) > n {
			return streams[n]
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no subscription %d for %s", n, jobID)
	return nil
}

func waitFor(t *testing.T, m *session.Machine, what string, cond func(session.Snapshot) bool) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := m.Snapshot(); cond(snap) {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last snapshot %+v", what, m.Snapshot())
	return session.Snapshot{}
}

func waitSettled(t *testing.T, m *session.Machine) session.Snapshot {
	t.Helper()
	select {
	case <-m.Settled():
	case <-time.After(5 * time.Second):
		t.Fatalf("attempt did not settle; snapshot %+v", m.Snapshot())
	}
	return m.Snapshot()
}

func loadVideo(t *testing.T, name string, size int64) *artifact.Artifact {
	t.Helper()
	art, err := artifact.Load(testsupport.WriteVideo(t, t.TempDir(), name, size))
	if err != nil {
		t.Fatalf("artifact.Load: %v", err)
	}
	return art
}

func running(step string, progress int, message string) api.StatusPayload {
	return api.StatusPayload{Status: api.JobStatusRunning, Step: step, Progress: progress, Message: message}
}
