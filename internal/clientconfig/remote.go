package clientconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HerbHall/mediatheme/internal/theme"
)

// ErrNetworkUnavailable is returned when the config API cannot be reached
// or answers with a failure.
var ErrNetworkUnavailable = errors.New("config server unavailable")

// DefaultTimeout bounds every request to the config API.
const DefaultTimeout = 5 * time.Second

// maxResponseBytes bounds a config API response.
const maxResponseBytes = 1 << 20

// Remote talks to the server-side config API.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote returns a client for the config API at url. A zero timeout
// uses DefaultTimeout.
func NewRemote(url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{url: url, client: &http.Client{Timeout: timeout}}
}

// URL returns the config API endpoint.
func (r *Remote) URL() string { return r.url }

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// FetchDocument returns the server's stored document as sent.
func (r *Remote) FetchDocument(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := r.do(req)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrNetworkUnavailable, err)
	}

	// Servers that answer with the bare document have no envelope.
	raw := json.RawMessage(body)
	if env.Success != nil {
		if !*env.Success {
			return nil, fmt.Errorf("%w: %s", ErrNetworkUnavailable, env.Error)
		}
		raw = env.Data
	}

	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", ErrNetworkUnavailable, err)
	}
	return doc, nil
}

// Fetch returns the server's config translated to client field names.
func (r *Remote) Fetch(ctx context.Context) (map[string]any, error) {
	doc, err := r.FetchDocument(ctx)
	if err != nil {
		return nil, err
	}
	return FromServerDocument(doc), nil
}

// Save writes cfg into the server document. The current document is read
// first so that server-only settings survive.
func (r *Remote) Save(ctx context.Context, cfg Config) error {
	doc, err := r.FetchDocument(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ToServerDocument(doc, cfg))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	_, err = r.do(req)
	return err
}

func (r *Remote) do(req *http.Request) ([]byte, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNetworkUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: HTTP %d", ErrNetworkUnavailable, req.Method, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

// FromServerDocument maps a server config document to client field names.
// Client fields present in doc are taken as is; the remaining ones are
// derived from the server schema (defaultTheme, the current theme's
// customColors, customization.allowColorCustomization).
func FromServerDocument(doc map[string]any) map[string]any {
	out := map[string]any{}
	known := defaultMap()
	for k, v := range doc {
		if _, ok := known[k]; ok {
			out[k] = v
		}
	}

	if _, ok := out["currentTheme"]; !ok {
		if id, ok := doc["defaultTheme"].(string); ok && id != "custom" {
			out["currentTheme"] = id
		}
	}
	if _, ok := out["enableCustomization"]; !ok {
		if c, ok := doc["customization"].(map[string]any); ok {
			if allow, ok := c["allowColorCustomization"].(bool); ok {
				out["enableCustomization"] = allow
			}
		}
	}
	if _, ok := out["customColors"]; !ok {
		if id, ok := out["currentTheme"].(string); ok {
			if themes, ok := doc["themes"].(map[string]any); ok {
				if t, ok := themes[id].(map[string]any); ok {
					if colors, ok := t["customColors"].(map[string]any); ok {
						out["customColors"] = colors
					}
				}
			}
		}
	}
	return out
}

// ToServerDocument writes cfg into a copy of the server document doc.
// Themes the server schema does not enumerate are stored as "custom".
func ToServerDocument(doc map[string]any, cfg Config) map[string]any {
	out := make(map[string]any, len(doc)+4)
	for k, v := range doc {
		out[k] = v
	}

	switch cfg.CurrentTheme {
	case theme.DarkModern, theme.LightElegant:
		out["defaultTheme"] = cfg.CurrentTheme
	default:
		out["defaultTheme"] = "custom"
	}
	out["debugMode"] = cfg.DebugMode
	out["autoApply"] = cfg.AutoApply

	customization := copyObject(out["customization"])
	customization["allowColorCustomization"] = cfg.EnableCustomization
	out["customization"] = customization

	themes := copyObject(out["themes"])
	entry := copyObject(themes[cfg.CurrentTheme])
	if _, ok := entry["enabled"]; !ok {
		entry["enabled"] = true
	}
	colors := make(map[string]any, len(cfg.CustomColors))
	for k, v := range cfg.CustomColors {
		colors[k] = v
	}
	entry["customColors"] = colors
	themes[cfg.CurrentTheme] = entry
	out["themes"] = themes

	return out
}

func copyObject(v any) map[string]any {
	out := map[string]any{}
	if m, ok := v.(map[string]any); ok {
		for k, val := range m {
			out[k] = val
		}
	}
	return out
}
