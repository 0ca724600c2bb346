package dubclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"dubctl/internal/api"
	"dubctl/internal/artifact"
	"dubctl/internal/language"
	"dubctl/internal/logging"
)

// ErrorKind classifies a submission failure.
type ErrorKind string

const (
	// KindHTTPStatus: the service answered with a non-success status.
	KindHTTPStatus ErrorKind = "http_status"
	// KindInvalidResponse: success status but no usable job id in the body.
	KindInvalidResponse ErrorKind = "invalid_response"
	// KindNetwork: no response was received.
	KindNetwork ErrorKind = "network"
	// KindLocalRead: the artifact could not be read while uploading.
	KindLocalRead ErrorKind = "local_read"
)

const invalidResponseMessage = "Invalid response from server"

// SubmissionError describes why an upload did not yield a job id. Message is
// the user-facing text carried into the synthetic failed status.
type SubmissionError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// StatusPayload converts the failure into the failed status shown to the user.
func (e *SubmissionError) StatusPayload() api.StatusPayload {
	return api.FailedPayload(e.Message)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Submit uploads art with the target language and returns the job id the
// service assigned. Every failure is a *SubmissionError.
func (c *Client) Submit(ctx context.Context, art *artifact.Artifact, target language.Target) (string, error) {
	if art == nil {
		return "", &SubmissionError{Kind: KindLocalRead, Message: "No file selected"}
	}
	if c.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, c.logger)

	src, err := art.Open()
	if err != nil {
		return "", &SubmissionError{
			Kind:    KindLocalRead,
			Message: fmt.Sprintf("Could not read %s: %v", art.Name, err),
			Err:     err,
		}
	}
	defer src.Close()

	body, contentType := multipartBody(src, art, target)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(api.ProcessPath).String(), body)
	if err != nil {
		body.Close()
		return "", &SubmissionError{Kind: KindNetwork, Message: "Network error: " + err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	c.decorate(req)

	logger.Info("uploading video",
		logging.String("file", art.Name),
		logging.Int64("bytes", art.Size),
		logging.String("target_language", target.String()),
	)

	resp, err := c.stream.Do(req)
	if err != nil {
		var readErr *localReadError
		if errors.As(err, &readErr) {
			return "", &SubmissionError{
				Kind:    KindLocalRead,
				Message: fmt.Sprintf("Could not read %s: %v", art.Name, readErr.err),
				Err:     readErr.err,
			}
		}
		return "", &SubmissionError{Kind: KindNetwork, Message: "Network error: " + networkMessage(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := detailMessage(raw)
		if message == "" {
			message = fmt.Sprintf("Request failed (%d)", resp.StatusCode)
		}
		logging.WarnWithContext(logger, "upload rejected", "submit_rejected",
			logging.Int("status_code", resp.StatusCode),
			logging.String("detail", message),
			logging.String(logging.FieldErrorHint, "check the service logs for the rejected upload"),
			logging.String(logging.FieldImpact, "job was not created"),
		)
		return "", &SubmissionError{Kind: KindHTTPStatus, StatusCode: resp.StatusCode, Message: message}
	}

	var payload api.SubmitResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&payload); err != nil {
		return "", &SubmissionError{Kind: KindInvalidResponse, StatusCode: resp.StatusCode, Message: invalidResponseMessage, Err: err}
	}
	jobID := strings.TrimSpace(payload.JobID)
	if jobID == "" {
		return "", &SubmissionError{Kind: KindInvalidResponse, StatusCode: resp.StatusCode, Message: invalidResponseMessage}
	}
	logger.Info("job submitted", logging.String(logging.FieldJobID, jobID))
	return jobID, nil
}

// localReadError marks a failure reading the artifact while streaming the body.
type localReadError struct {
	err error
}

func (e *localReadError) Error() string { return "read upload: " + e.err.Error() }

func (e *localReadError) Unwrap() error { return e.err }

type sourceReader struct {
	r io.Reader
}

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = &localReadError{err: err}
	}
	return n, err
}

// multipartBody streams the form through a pipe so large videos are never
// buffered in memory.
func multipartBody(src io.Reader, art *artifact.Artifact, target language.Target) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(art.Name)))
		header.Set("Content-Type", art.MediaType)

		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, sourceReader{src}); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("target_language", target.String()); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	return pr, mw.FormDataContentType()
}

func networkMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
