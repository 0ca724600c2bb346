// Package artifact loads and validates the video file a dubbing job uploads.
//
// Media types are derived from the file extension first and from content
// sniffing second. Only media types under video/ are accepted; anything else
// is rejected at selection time so no job is ever created for it.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrNotVideo is returned when the selected file is not a video.
var ErrNotVideo = errors.New("selected file is not a video")

// VideoExtensions maps supported video extensions to their media types.
var VideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".ts":   "video/mp2t",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".3gp":  "video/3gpp",
}

// Artifact is the user's chosen input file. It is never mutated after Load;
// selecting another file produces a new Artifact.
type Artifact struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// Load inspects path and returns an Artifact when it is a readable video file.
func Load(path string) (*Artifact, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("artifact path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	mediaType, err := DetectMediaType(path)
	if err != nil {
		return nil, err
	}
	a := &Artifact{
		Path:      path,
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      info.Size(),
	}
	if !a.IsVideo() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotVideo, a.Name, mediaType)
	}
	return a, nil
}

// DetectMediaType resolves the media type of path from its extension,
// falling back to sniffing the first 512 bytes.
func DetectMediaType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if mediaType, ok := VideoExtensions[ext]; ok {
		return mediaType, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return http.DetectContentType(head[:n]), nil
}

// IsVideo reports whether the artifact passes the client-side media gate.
func (a *Artifact) IsVideo() bool {
	return a != nil && strings.HasPrefix(strings.ToLower(a.MediaType), "video/")
}

// Open returns a reader over the artifact's content.
func (a *Artifact) Open() (io.ReadCloser, error) {
	if a == nil {
		return nil, errors.New("artifact is nil")
	}
	return os.Open(a.Path)
}

// HumanSize formats the artifact size for display.
func (a *Artifact) HumanSize() string {
	if a == nil {
		return ""
	}
	return humanize.Bytes(uint64(a.Size))
}
