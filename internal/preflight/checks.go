package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dubctl/internal/api"
)

const serviceCheckTimeout = 10 * time.Second

// HealthChecker is satisfied by *dubclient.Client.
type HealthChecker interface {
	Health(ctx context.Context) (api.HealthResponse, error)
}

// CheckService verifies that the dubbing service answers its health probe
// and has FFmpeg available. It reports one result per concern.
func CheckService(ctx context.Context, service HealthChecker) []Result {
	const (
		serviceName = "Dubbing service"
		ffmpegName  = "Service FFmpeg"
	)

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()

	health, err := service.Health(checkCtx)
	if err != nil {
		return []Result{
			{Name: serviceName, Detail: summarizeServiceError(err)},
			{Name: ffmpegName, Detail: "unknown (service unreachable)"},
		}
	}

	results := make([]Result, 0, 2)
	if strings.EqualFold(strings.TrimSpace(health.Status), "ok") {
		results = append(results, Result{Name: serviceName, Passed: true, Detail: "Reachable"})
	} else {
		results = append(results, Result{Name: serviceName, Detail: fmt.Sprintf("unexpected status %q", health.Status)})
	}
	if health.FFmpegAvailable {
		results = append(results, Result{Name: ffmpegName, Passed: true, Detail: "Available"})
	} else {
		results = append(results, Result{Name: ffmpegName, Detail: "not found on the service host; jobs will fail"})
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeServiceError produces a human-readable summary for health probe failures.
func summarizeServiceError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable (%v)", opErr.Err)
	}
	return err.Error()
}
