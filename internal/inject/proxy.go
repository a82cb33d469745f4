// Package inject puts the theme controller in front of the media server:
// a reverse proxy that decorates every HTML page it relays with the
// current theme stylesheets and body marker classes.
package inject

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/HerbHall/mediatheme/internal/dom"
	"go.uber.org/zap"
)

// maxPageBytes bounds the pages that are decorated; larger ones pass
// through untouched.
const maxPageBytes = 8 << 20

// Decorator applies the current theme to a parsed page.
// *controller.Controller implements it.
type Decorator interface {
	Decorate(page dom.Document)
}

// Proxy relays requests to the media server and decorates HTML responses.
type Proxy struct {
	target    *url.URL
	proxy     *httputil.ReverseProxy
	decorator Decorator
	logger    *zap.Logger
}

// NewProxy creates a proxy for the media server at upstream.
func NewProxy(upstream string, decorator Decorator, logger *zap.Logger) (*Proxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("parse upstream URL: %q needs a scheme and host", upstream)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Proxy{target: target, decorator: decorator, logger: logger}

	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(r *http.Request) {
		director(r)
		// Decoration needs the page uncompressed. An explicit value also
		// stops the transport from negotiating gzip on its own.
		r.Header.Set("Accept-Encoding", "identity")
	}
	rp.ModifyResponse = p.modifyResponse
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, proxyErr error) {
		p.logger.Warn("reverse proxy error",
			zap.String("target", target.String()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(proxyErr),
		)
		w.WriteHeader(http.StatusBadGateway)
	}
	p.proxy = rp

	logger.Debug("proxy created", zap.String("target", target.String()))
	return p, nil
}

// Target returns the upstream URL.
func (p *Proxy) Target() string { return p.target.String() }

// ServeHTTP relays r to the media server.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	if !isDecoratable(resp) {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes+1))
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("read upstream page: %w", err)
	}
	if len(body) > maxPageBytes {
		p.logger.Debug("page too large to decorate", zap.String("path", resp.Request.URL.Path))
		// Stitch the consumed prefix back onto the rest of the stream.
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return nil
	}
	resp.Body.Close()

	out := body
	page, err := dom.Parse(bytes.NewReader(body))
	if err != nil {
		p.logger.Warn("page not decorated", zap.String("path", resp.Request.URL.Path), zap.Error(err))
	} else {
		p.decorator.Decorate(page)
		var buf bytes.Buffer
		if err := page.Render(&buf); err != nil {
			p.logger.Warn("rendering decorated page failed", zap.Error(err))
		} else {
			out = buf.Bytes()
		}
	}

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	resp.Header.Del("ETag")
	return nil
}

func isDecoratable(resp *http.Response) bool {
	if resp.StatusCode != http.StatusOK || resp.Request == nil || resp.Request.Method == http.MethodHead {
		return false
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		return false
	}
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mt == "text/html"
}

type readCloser struct {
	io.Reader
	io.Closer
}
