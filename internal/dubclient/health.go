package dubclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"dubctl/internal/api"
)

// Health reports whether the service is up and able to process video.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var payload api.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, api.HealthPath, &payload); err != nil {
		return api.HealthResponse{}, fmt.Errorf("health check: %w", err)
	}
	return payload, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path).String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newHTTPError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
