package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CSSSource returns a theme's stylesheet text. *theme.Registry implements
// it for in-process use; RemoteCSS fetches over HTTP.
type CSSSource interface {
	CSS(ctx context.Context, id string) (string, error)
}

// maxCSSBytes bounds a fetched stylesheet.
const maxCSSBytes = 2 << 20

// RemoteCSS fetches stylesheets from {base}/themes/{id}.css.
type RemoteCSS struct {
	base   string
	client *http.Client
}

// NewRemoteCSS returns a CSSSource for the add-on server at base, e.g.
// "http://127.0.0.1:8097/emby-ui-plugin".
func NewRemoteCSS(base string, timeout time.Duration) *RemoteCSS {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteCSS{
		base:   strings.TrimSuffix(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Base returns the add-on base URL stylesheets are fetched from.
func (r *RemoteCSS) Base() string { return r.base }

// CSS fetches the stylesheet for id.
func (r *RemoteCSS) CSS(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/themes/"+id+".css", http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch theme %s: HTTP %d", id, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCSSBytes))
	if err != nil {
		return "", fmt.Errorf("fetch theme %s: %w", id, err)
	}
	return string(data), nil
}
