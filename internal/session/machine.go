package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"dubctl/internal/api"
	"dubctl/internal/artifact"
	"dubctl/internal/language"
	"dubctl/internal/logging"
	"dubctl/internal/stages"
)

var (
	// ErrBusy is returned when an action needs the machine to be idle.
	ErrBusy = errors.New("a job is already in progress")
	// ErrNoArtifact is returned by Start when no file has been selected.
	ErrNoArtifact = errors.New("no video selected")
	// ErrNotRetryable is returned by Retry outside the Failed phase.
	ErrNotRetryable = errors.New("only a failed job can be retried")
	// ErrNotCompleted is returned by DownloadURL before the job completes.
	ErrNotCompleted = errors.New("job has not completed")
	// ErrClosed is returned once the machine has been closed.
	ErrClosed = errors.New("session closed")

	errStreamClosed = errors.New("status stream closed before the job finished")
)

// Phase is the lifecycle position of the current job attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseStreaming  Phase = "streaming"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether p ends an attempt.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Processing reports whether p locks the file and language inputs.
func (p Phase) Processing() bool {
	return p == PhaseSubmitting || p == PhaseStreaming
}

// Submitter uploads an artifact and returns the job id.
type Submitter interface {
	Submit(ctx context.Context, art *artifact.Artifact, target language.Target) (string, error)
}

// Stream is a live status subscription.
type Stream interface {
	Updates() <-chan api.StatusPayload
	Done() <-chan struct{}
	Err() error
	Close()
}

// Subscriber opens status streams. Subscribe must not block on the network.
type Subscriber interface {
	Subscribe(ctx context.Context, jobID string) (Stream, error)
}

// Service is everything the machine needs from the dubbing service.
type Service interface {
	Submitter
	Subscriber
	DownloadURL(jobID string) string
}

// failure is implemented by submission errors that know the failed status
// they should be shown as.
type failure interface {
	StatusPayload() api.StatusPayload
}

// Snapshot is an immutable copy of the machine state.
type Snapshot struct {
	Phase       Phase              `json:"phase"`
	Artifact    *artifact.Artifact `json:"artifact,omitempty"`
	Language    language.Target    `json:"language"`
	JobID       string             `json:"job_id,omitempty"`
	Status      *api.StatusPayload `json:"status,omitempty"`
	Processing  bool               `json:"processing"`
	Interrupted bool               `json:"interrupted,omitempty"`
	StreamError string             `json:"stream_error,omitempty"`
	AttemptID   string             `json:"attempt_id,omitempty"`
	Attempts    int                `json:"attempts"`
}

// Stages projects the snapshot's status onto catalog.
func (s Snapshot) Stages(catalog stages.Catalog) stages.Projection {
	return stages.Project(catalog, s.Status)
}

// Machine drives one job at a time.
type Machine struct {
	service Service
	logger  *slog.Logger

	mu          sync.Mutex
	phase       Phase
	artifact    *artifact.Artifact
	target      language.Target
	jobID       string
	status      *api.StatusPayload
	interrupted bool
	streamErr   error
	attemptID   string
	attempts    int
	generation  uint64
	stream      Stream
	cancel      context.CancelFunc
	settled     chan struct{}
	settledDone bool
	closed      bool

	listeners []func(Snapshot)
	queue     []notification
	draining  bool
	// pendingSettle is the settled channel to close once the snapshot that
	// settled it has been delivered.
	pendingSettle chan struct{}
}

type notification struct {
	snap   Snapshot
	settle chan struct{}
}

// NewMachine returns an idle machine targeting target.
func NewMachine(service Service, target language.Target, logger *slog.Logger) *Machine {
	settled := make(chan struct{})
	close(settled)
	return &Machine{
		service:     service,
		logger:      logging.NewComponentLogger(logger, "session"),
		phase:       PhaseIdle,
		target:      target,
		settled:     settled,
		settledDone: true,
	}
}

// OnChange registers fn to receive a snapshot after every transition.
// Snapshots are delivered one at a time, in transition order, from a single
// notifier goroutine that holds no machine lock, so fn may call any Machine
// method. A slow fn delays later snapshots and Settled.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Settled is closed when the current attempt reaches a terminal phase, after
// listeners have received the terminal snapshot, or when the machine is
// closed. Before any attempt it is already closed.
func (m *Machine) Settled() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settled
}

// Select replaces the chosen artifact. Non-video files are rejected and
// leave the state untouched.
func (m *Machine) Select(art *artifact.Artifact) error {
	if art == nil {
		return errors.New("select: artifact is required")
	}
	if !art.IsVideo() {
		return fmt.Errorf("select %s: %w", art.Name, artifact.ErrNotVideo)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.phase.Processing() {
		m.mu.Unlock()
		return ErrBusy
	}
	m.artifact = art
	m.unlockAndNotify()
	return nil
}

// SetLanguage changes the target language for the next submission.
func (m *Machine) SetLanguage(target language.Target) error {
	if !target.Valid() {
		return fmt.Errorf("unsupported language %q", target)
	}
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.phase.Processing():
		m.mu.Unlock()
		return ErrBusy
	}
	m.target = target
	m.unlockAndNotify()
	return nil
}

// Start submits the selected artifact. It returns once the attempt is under
// way; progress is observed through OnChange, Snapshot, and Settled. Start
// is a no-op returning ErrNoArtifact without a selection and ErrBusy outside
// the Idle phase.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.artifact == nil:
		m.mu.Unlock()
		return ErrNoArtifact
	case m.phase != PhaseIdle:
		m.mu.Unlock()
		return ErrBusy
	}

	attemptCtx, gen := m.beginAttemptLocked(ctx)
	m.phase = PhaseSubmitting
	art, target := m.artifact, m.target
	logger := logging.WithContext(attemptCtx, m.logger)
	logger.Info("submitting job",
		logging.String("file", art.Name),
		logging.String("target_language", target.String()),
		logging.Int("attempt", m.attempts),
	)
	m.unlockAndNotify()

	go m.submit(attemptCtx, gen, art, target)
	return nil
}

// Watch attaches to the status stream of an already submitted job.
func (m *Machine) Watch(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("watch: job id is required")
	}
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.phase.Processing():
		m.mu.Unlock()
		return ErrBusy
	}
	attemptCtx, gen := m.beginAttemptLocked(ctx)
	stream, err := m.openStreamLocked(attemptCtx, jobID)
	if err != nil {
		m.interruptLocked(err)
		m.unlockAndNotify()
		return err
	}
	m.unlockAndNotify()

	go m.pump(gen, stream)
	return nil
}

// Retry returns a failed attempt to Idle, keeping the selected artifact so
// it can be resubmitted.
func (m *Machine) Retry() error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.phase != PhaseFailed:
		m.mu.Unlock()
		return ErrNotRetryable
	}
	m.resetLocked()
	m.logger.Info("job reset for retry")
	m.unlockAndNotify()
	return nil
}

// Reset returns a finished attempt to Idle. It is a no-op while processing.
func (m *Machine) Reset() error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.phase.Processing():
		m.mu.Unlock()
		return ErrBusy
	}
	m.resetLocked()
	m.unlockAndNotify()
	return nil
}

// DownloadURL returns the finished artifact's URL once the job completed.
func (m *Machine) DownloadURL() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseCompleted {
		return "", ErrNotCompleted
	}
	return m.service.DownloadURL(m.jobID), nil
}

// Close abandons any attempt in flight and releases the subscription.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.generation++
	m.stopLocked()
	m.settleLocked()
	if m.pendingSettle != nil {
		close(m.pendingSettle)
		m.pendingSettle = nil
	}
}

func (m *Machine) beginAttemptLocked(ctx context.Context) (context.Context, uint64) {
	m.stopLocked()
	m.generation++
	m.attempts++
	m.attemptID = uuid.NewString()
	m.jobID = ""
	m.status = nil
	m.interrupted = false
	m.streamErr = nil
	m.settled = make(chan struct{})
	m.settledDone = false

	attemptCtx, cancel := context.WithCancel(logging.WithAttemptID(ctx, m.attemptID))
	m.cancel = cancel
	return attemptCtx, m.generation
}

// openStreamLocked closes any previous subscription before opening the new
// one so at most one is ever live.
func (m *Machine) openStreamLocked(ctx context.Context, jobID string) (Stream, error) {
	m.closeStreamLocked()
	m.jobID = jobID
	m.phase = PhaseStreaming
	stream, err := m.service.Subscribe(logging.WithJobID(ctx, jobID), jobID)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", jobID, err)
	}
	m.stream = stream
	return stream, nil
}

func (m *Machine) submit(ctx context.Context, gen uint64, art *artifact.Artifact, target language.Target) {
	jobID, err := m.service.Submit(ctx, art, target)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	logger := logging.WithContext(ctx, m.logger)
	if err != nil {
		payload := api.FailedPayload(err.Error())
		var f failure
		if errors.As(err, &f) {
			payload = f.StatusPayload()
		}
		m.status = &payload
		m.phase = PhaseFailed
		m.stopLocked()
		m.settleLocked()
		logging.WarnWithContext(logger, "submission failed", "submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the reported problem and retry"),
			logging.String(logging.FieldImpact, "no job was created"),
		)
		m.unlockAndNotify()
		return
	}

	stream, err := m.openStreamLocked(ctx, jobID)
	if err != nil {
		m.interruptLocked(err)
		m.unlockAndNotify()
		return
	}
	logger.Info("job accepted", logging.String(logging.FieldJobID, jobID))
	m.unlockAndNotify()

	m.pump(gen, stream)
}

// pump feeds payloads into apply one at a time, then reports how the stream
// ended.
func (m *Machine) pump(gen uint64, stream Stream) {
	for payload := range stream.Updates() {
		if !m.apply(gen, payload) {
			return
		}
	}
	<-stream.Done()
	m.streamEnded(gen, stream.Err())
}

// apply is the transition for one inbound payload. It returns false when the
// pump should stop.
func (m *Machine) apply(gen uint64, payload api.StatusPayload) bool {
	m.mu.Lock()
	if gen != m.generation || m.phase != PhaseStreaming {
		m.mu.Unlock()
		return false
	}
	p := payload
	m.status = &p
	if !p.Terminal() {
		m.unlockAndNotify()
		return true
	}

	if p.Status == api.JobStatusCompleted {
		m.phase = PhaseCompleted
	} else {
		m.phase = PhaseFailed
	}
	m.stopLocked()
	m.settleLocked()
	m.logger.Info("job finished",
		logging.String(logging.FieldJobID, m.jobID),
		logging.String("status", string(p.Status)),
		logging.String("message", p.Message),
	)
	m.unlockAndNotify()
	return false
}

func (m *Machine) streamEnded(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation || m.phase != PhaseStreaming {
		m.mu.Unlock()
		return
	}
	if err == nil {
		err = errStreamClosed
	}
	m.interruptLocked(err)
	m.unlockAndNotify()
}

// interruptLocked ends the attempt without a terminal payload. The last
// payload stays as it was.
func (m *Machine) interruptLocked(err error) {
	m.phase = PhaseFailed
	m.interrupted = true
	m.streamErr = err
	m.stopLocked()
	m.settleLocked()
	logging.WarnWithContext(m.logger, "status stream lost before the job finished", "stream_interrupted",
		logging.String(logging.FieldJobID, m.jobID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run `dubctl watch "+m.jobID+"` to reattach"),
		logging.String(logging.FieldImpact, "final job status unknown"),
	)
}

func (m *Machine) resetLocked() {
	m.generation++
	m.stopLocked()
	m.settleLocked()
	m.phase = PhaseIdle
	m.jobID = ""
	m.status = nil
	m.interrupted = false
	m.streamErr = nil
}

func (m *Machine) stopLocked() {
	m.closeStreamLocked()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) closeStreamLocked() {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
}

// settleLocked marks the attempt settled. The channel itself is closed by
// the notifier after the accompanying snapshot is delivered.
func (m *Machine) settleLocked() {
	if !m.settledDone {
		m.pendingSettle = m.settled
		m.settledDone = true
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:       m.phase,
		Artifact:    m.artifact,
		Language:    m.target,
		JobID:       m.jobID,
		Processing:  m.phase.Processing(),
		Interrupted: m.interrupted,
		AttemptID:   m.attemptID,
		Attempts:    m.attempts,
	}
	if m.status != nil {
		status := *m.status
		snap.Status = &status
	}
	if m.streamErr != nil {
		snap.StreamError = m.streamErr.Error()
	}
	return snap
}

// unlockAndNotify queues the post-transition snapshot and releases mu. A
// single drain goroutine delivers the queue so listeners see transitions in
// the order they happened without ever running under mu.
func (m *Machine) unlockAndNotify() {
	m.queue = append(m.queue, notification{snap: m.snapshotLocked(), settle: m.pendingSettle})
	m.pendingSettle = nil
	start := !m.draining
	m.draining = true
	m.mu.Unlock()
	if start {
		go m.drain()
	}
}

func (m *Machine) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		next := m.queue[0]
		m.queue[0] = notification{}
		m.queue = m.queue[1:]
		listeners := m.listeners
		m.mu.Unlock()

		for _, fn := range listeners {
			fn(next.snap)
		}
		if next.settle != nil {
			close(next.settle)
		}
	}
}
