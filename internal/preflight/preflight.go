package preflight

import (
	"context"

	"dubctl/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every applicable check for the given config. The service
// checks are skipped when service is nil.
func RunAll(ctx context.Context, cfg *config.Config, service HealthChecker) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if service != nil {
		results = append(results, CheckService(ctx, service)...)
	}

	results = append(results, CheckDirectoryAccess("State directory", cfg.Session.StateDir))
	if cfg.Session.DownloadDir != "" {
		results = append(results, CheckDirectoryAccess("Download directory", cfg.Session.DownloadDir))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
