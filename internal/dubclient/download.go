package dubclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"dubctl/internal/api"
	"dubctl/internal/logging"
)

// DownloadResult describes a finished transfer.
type DownloadResult struct {
	Bytes       int64
	Filename    string
	ContentType string
}

// Download streams the finished artifact of jobID into w. The service only
// serves it once the job has completed.
func (c *Client) Download(ctx context.Context, jobID string, w io.Writer) (DownloadResult, error) {
	logger := logging.WithContext(logging.WithJobID(ctx, jobID), c.logger)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(jobID), nil)
	if err != nil {
		return DownloadResult{}, err
	}
	c.decorate(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("download %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return DownloadResult{}, fmt.Errorf("download %s: %w", jobID, newHTTPError(resp))
	}

	result := DownloadResult{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
	}
	n, err := io.Copy(w, resp.Body)
	result.Bytes = n
	if err != nil {
		return result, fmt.Errorf("download %s: %w", jobID, err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return result, fmt.Errorf("download %s: received %d of %d bytes", jobID, n, resp.ContentLength)
	}
	logger.Info("download complete", logging.Int64("bytes", n))
	return result, nil
}

// DefaultFilename is the name the service gives a finished artifact.
func DefaultFilename(jobID string) string {
	return "dubbed_" + jobID + ".mp4"
}

func attachmentName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// Cleanup asks the service to delete a job's temporary files.
func (c *Client) Cleanup(ctx context.Context, jobID string) (api.CleanupResponse, error) {
	var payload api.CleanupResponse
	if err := c.doJSON(ctx, http.MethodDelete, api.CleanupPath(jobID), &payload); err != nil {
		return api.CleanupResponse{}, fmt.Errorf("cleanup %s: %w", jobID, err)
	}
	return payload, nil
}
