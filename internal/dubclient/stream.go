package dubclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"dubctl/internal/api"
	"dubctl/internal/logging"
)

// ErrStreamEnded is reported when the service closes the status stream
// before sending a terminal payload.
var ErrStreamEnded = errors.New("status stream ended before the job finished")

const (
	updateBuffer   = 16
	maxEventLength = 1 << 20
)

// Subscription is one live status stream for a job.
type Subscription struct {
	jobID   string
	updates chan api.StatusPayload
	done    chan struct{}
	cancel  context.CancelFunc
	closed  atomic.Bool

	mu  sync.Mutex
	err error
}

// JobID returns the job this subscription follows.
func (s *Subscription) JobID() string { return s.jobID }

// Updates delivers decoded payloads in arrival order. The channel is closed
// when the stream ends for any reason.
func (s *Subscription) Updates() <-chan api.StatusPayload { return s.updates }

// Done is closed once the stream has ended and Err is final.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the stream ended. It is nil after a terminal payload or an
// explicit Close, the context error when the parent context was cancelled,
// and a transport error otherwise. It is only meaningful after Done.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription. It is safe to call more than once and from
// any goroutine.
func (s *Subscription) Close() {
	s.closed.Store(true)
	s.cancel()
}

// Subscribe opens the status stream for jobID. The connection is made in the
// background; connection failures surface through Err.
func (c *Client) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("subscribe: job id is required")
	}
	streamCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		jobID:   jobID,
		updates: make(chan api.StatusPayload, updateBuffer),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	logger := logging.WithContext(logging.WithJobID(ctx, jobID), c.logger)
	go sub.run(ctx, streamCtx, c, logger)
	return sub, nil
}

func (s *Subscription) run(parent, ctx context.Context, c *Client, logger *slog.Logger) {
	err := s.consume(ctx, c, logger)
	switch {
	case s.closed.Load():
		err = nil
	case parent.Err() != nil:
		err = parent.Err()
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.cancel()
	close(s.updates)
	close(s.done)

	if err != nil {
		logging.WarnWithContext(logger, "status stream ended", "stream_interrupted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `dubctl watch` to reattach"),
			logging.String(logging.FieldImpact, "job progress no longer updates"),
		)
	} else {
		logger.Debug("status stream closed")
	}
}

func (s *Subscription) consume(ctx context.Context, c *Client, logger *slog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(api.StatusPath(s.jobID)).String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.decorate(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open status stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open status stream: %w", newHTTPError(resp))
	}
	logger.Debug("status stream opened")

	terminal := false
	err = readEvents(resp.Body, func(ev event) bool {
		if ev.oversized {
			logging.WarnWithContext(logger, "dropping oversized status frame", "stream_frame_oversized",
				logging.Int("limit_bytes", maxEventLength),
				logging.String(logging.FieldImpact, "frame ignored; stream continues"),
			)
			return true
		}
		if ev.name != "" && ev.name != "message" {
			logger.Debug("ignoring status stream event", logging.String("event", ev.name))
			return true
		}
		payload, err := decodePayload(ev.data)
		if err != nil {
			logging.WarnWithContext(logger, "dropping malformed status frame", "stream_frame_invalid",
				logging.Error(err),
				logging.String("data", truncate(ev.data, 200)),
				logging.String(logging.FieldImpact, "frame ignored; stream continues"),
			)
			return true
		}
		logger.Debug("status update",
			logging.String("status", string(payload.Status)),
			logging.String(logging.FieldStage, payload.Step),
			logging.Int("progress", payload.Progress),
		)
		select {
		case s.updates <- payload:
		case <-ctx.Done():
			return false
		}
		if payload.Terminal() {
			terminal = true
			return false
		}
		return true
	})
	if terminal {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read status stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrStreamEnded
}

func decodePayload(data string) (api.StatusPayload, error) {
	var payload api.StatusPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return api.StatusPayload{}, fmt.Errorf("decode status payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return api.StatusPayload{}, err
	}
	return payload, nil
}

type event struct {
	name string
	data string
	// oversized marks an event that had a line longer than maxEventLength.
	// Its data is incomplete and must not be decoded.
	oversized bool
}

// readEvents parses a text/event-stream body and calls fn for every complete
// event until fn returns false or the body ends. A trailing event without its
// blank-line terminator is discarded. Lines longer than maxEventLength are
// skipped and the event they belong to is delivered with oversized set.
func readEvents(r io.Reader, fn func(event) bool) error {
	reader := bufio.NewReaderSize(r, 4096)

	var (
		name      string
		data      strings.Builder
		hasData   bool
		oversized bool
	)
	for {
		line, tooLong, err := readLine(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if tooLong {
			oversized = true
			continue
		}
		if line == "" {
			if hasData || oversized {
				ev := event{name: name, data: data.String(), oversized: oversized}
				if oversized {
					ev.data = ""
				}
				if !fn(ev) {
					return nil
				}
			}
			name = ""
			data.Reset()
			hasData = false
			oversized = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			name = value
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxEventLength is consumed up to its newline and reported as tooLong with
// no content. A final line with no newline is returned with io.EOF.
func readLine(r *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, readErr := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxEventLength+2 {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		if readErr != nil {
			return "", false, readErr
		}
		if tooLong {
			return "", true, nil
		}
		line = strings.TrimSuffix(string(buf), "\n")
		return strings.TrimSuffix(line, "\r"), false, nil
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
