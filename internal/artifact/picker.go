package artifact

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ncruces/zenity"
)

// ErrPickCanceled is returned when the user dismisses the file dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// Pick opens the native file dialog filtered to video files and loads the
// chosen file.
func Pick() (*Artifact, error) {
	selected, err := zenity.SelectFile(
		zenity.Title("Select a video to dub"),
		zenity.FileFilters{
			{
				Name:     "Video files",
				Patterns: videoPatterns(),
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, ErrPickCanceled
		}
		return nil, fmt.Errorf("file picker failed: %w", err)
	}
	if strings.TrimSpace(selected) == "" {
		return nil, ErrPickCanceled
	}
	return Load(selected)
}

func videoPatterns() []string {
	patterns := make([]string, 0, len(VideoExtensions))
	for ext := range VideoExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)
	return patterns
}
