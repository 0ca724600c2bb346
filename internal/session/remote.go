package session

import (
	"context"

	"dubctl/internal/artifact"
	"dubctl/internal/dubclient"
	"dubctl/internal/language"
)

// Remote adapts a dubclient.Client to Service.
type Remote struct {
	Client *dubclient.Client
}

// NewRemote wraps client.
func NewRemote(client *dubclient.Client) Remote {
	return Remote{Client: client}
}

func (r Remote) Submit(ctx context.Context, art *artifact.Artifact, target language.Target) (string, error) {
	return r.Client.Submit(ctx, art, target)
}

func (r Remote) Subscribe(ctx context.Context, jobID string) (Stream, error) {
	sub, err := r.Client.Subscribe(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r Remote) DownloadURL(jobID string) string {
	return r.Client.DownloadURL(jobID)
}
