package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"dubctl/internal/api"
)

// Frame is one server-sent event. Raw, when set, is sent verbatim as the data
// field; otherwise Payload is JSON encoded.
type Frame struct {
	Event   string
	Payload api.StatusPayload
	Raw     string
}

// Running builds a non-terminal frame.
func Running(step string, progress int, message string) Frame {
	return Frame{Payload: api.StatusPayload{Status: api.JobStatusRunning, Step: step, Progress: progress, Message: message}}
}

// Completed builds the terminal success frame.
func Completed(message string) Frame {
	return Frame{Payload: api.StatusPayload{Status: api.JobStatusCompleted, Step: "mixing", Progress: 100, Message: message}}
}

// Failed builds a terminal failure frame.
func Failed(step, message string) Frame {
	return Frame{Payload: api.StatusPayload{Status: api.JobStatusFailed, Step: step, Progress: 0, Message: message, Error: message}}
}

// Script controls how the fake service answers one job's status stream.
type Script struct {
	Frames []Frame
	// Gate, when non-nil, delays the frames until it is closed.
	Gate chan struct{}
	// HoldOpen keeps the connection open after the frames until the client
	// disconnects. Without it the server closes the stream after the last frame.
	HoldOpen bool
}

// Upload records one request to the process endpoint.
type Upload struct {
	Filename       string
	ContentType    string
	TargetLanguage string
	Size           int64
	RequestID      string
}

// FakeService is a scripted stand-in for the dubbing service.
type FakeService struct {
	URL string

	server *httptest.Server

	mu           sync.Mutex
	jobIDs       []string
	submitStatus int
	submitBody   string
	scripts      map[string]Script
	downloads    map[string][]byte
	health       api.HealthResponse
	uploads      []Upload
	cleaned      []string
	streamOpens  map[string]int
	disconnects  map[string]int
}

// NewFakeService starts a fake service that is shut down when the test ends.
func NewFakeService(t testing.TB) *FakeService {
	t.Helper()
	fs := &FakeService{
		scripts:     map[string]Script{},
		downloads:   map[string][]byte{},
		streamOpens: map[string]int{},
		disconnects: map[string]int{},
		health:      api.HealthResponse{Status: "ok", FFmpegAvailable: true},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.ProcessPath, fs.handleProcess)
	mux.HandleFunc("GET /api/status/{id}", fs.handleStatus)
	mux.HandleFunc("GET /api/download/{id}", fs.handleDownload)
	mux.HandleFunc("DELETE /api/cleanup/{id}", fs.handleCleanup)
	mux.HandleFunc("GET "+api.HealthPath, fs.handleHealth)
	fs.server = httptest.NewServer(mux)
	fs.URL = fs.server.URL
	t.Cleanup(fs.Close)
	return fs
}

// Close shuts the server down and drops any held streams.
func (fs *FakeService) Close() {
	fs.server.CloseClientConnections()
	fs.server.Close()
}

// QueueJobIDs sets the ids returned by successive successful uploads.
func (fs *FakeService) QueueJobIDs(ids ...string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.jobIDs = append(fs.jobIDs, ids...)
}

// RejectUploads makes the next uploads answer with status and a raw body.
// A zero status restores normal behaviour.
func (fs *FakeService) RejectUploads(status int, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.submitStatus = status
	fs.submitBody = body
}

// Script registers the status stream for jobID.
func (fs *FakeService) Script(jobID string, script Script) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.scripts[jobID] = script
}

// SetDownload registers the finished artifact for jobID.
func (fs *FakeService) SetDownload(jobID string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.downloads[jobID] = data
}

// SetHealth overrides the health response.
func (fs *FakeService) SetHealth(resp api.HealthResponse) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.health = resp
}

// Uploads returns the recorded uploads.
func (fs *FakeService) Uploads() []Upload {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Upload(nil), fs.uploads...)
}

// Cleaned returns the job ids passed to the cleanup endpoint.
func (fs *FakeService) Cleaned() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.cleaned...)
}

// StreamOpens reports how many times the status stream of jobID was opened.
func (fs *FakeService) StreamOpens(jobID string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.streamOpens[jobID]
}

// Disconnects reports how many held streams of jobID ended because the
// client went away.
func (fs *FakeService) Disconnects(jobID string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.disconnects[jobID]
}

func (fs *FakeService) handleProcess(w http.ResponseWriter, r *http.Request) {
	upload := Upload{RequestID: r.Header.Get("X-Request-ID")}
	reader, err := r.MultipartReader()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		switch part.FormName() {
		case "file":
			upload.Filename = part.FileName()
			upload.ContentType = part.Header.Get("Content-Type")
			upload.Size, _ = io.Copy(io.Discard, part)
		case "target_language":
			value, _ := io.ReadAll(part)
			upload.TargetLanguage = string(value)
		}
		part.Close()
	}

	fs.mu.Lock()
	fs.uploads = append(fs.uploads, upload)
	status, body := fs.submitStatus, fs.submitBody
	var jobID string
	if status == 0 {
		if len(fs.jobIDs) > 0 {
			jobID = fs.jobIDs[0]
			fs.jobIDs = fs.jobIDs[1:]
		} else {
			jobID = fmt.Sprintf("job%03d", len(fs.uploads))
		}
	}
	fs.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}
	writeJSON(w, http.StatusOK, api.SubmitResponse{JobID: jobID})
}

func (fs *FakeService) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	fs.mu.Lock()
	script, ok := fs.scripts[jobID]
	if ok {
		fs.streamOpens[jobID]++
	}
	fs.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if script.Gate != nil {
		select {
		case <-script.Gate:
		case <-r.Context().Done():
			fs.recordDisconnect(jobID)
			return
		}
	}

	for _, frame := range script.Frames {
		if frame.Event != "" {
			fmt.Fprintf(w, "event: %s\n", frame.Event)
		}
		data := frame.Raw
		if data == "" {
			encoded, _ := json.Marshal(frame.Payload)
			data = string(encoded)
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	if script.HoldOpen {
		<-r.Context().Done()
		fs.recordDisconnect(jobID)
	}
}

func (fs *FakeService) recordDisconnect(jobID string) {
	fs.mu.Lock()
	fs.disconnects[jobID]++
	fs.mu.Unlock()
}

func (fs *FakeService) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	fs.mu.Lock()
	data, ok := fs.downloads[jobID]
	fs.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Job is not completed yet")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dubbed_%s.mp4"`, jobID))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

func (fs *FakeService) handleCleanup(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.cleaned = append(fs.cleaned, r.PathValue("id"))
	fs.mu.Unlock()
	writeJSON(w, http.StatusOK, api.CleanupResponse{Status: "cleaned"})
}

func (fs *FakeService) handleHealth(w http.ResponseWriter, _ *http.Request) {
	fs.mu.Lock()
	health := fs.health
	fs.mu.Unlock()
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": strings.TrimSpace(detail)})
}
