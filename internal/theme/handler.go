package theme

import (
	"errors"
	"net/http"
	"strings"

	"github.com/HerbHall/mediatheme/internal/server"
	"go.uber.org/zap"
)

// Handler serves theme stylesheets and the theme list.
type Handler struct {
	registry *Registry
	base     string
	logger   *zap.Logger
}

// NewHandler creates a theme handler mounted under basePath
// (server.DefaultBasePath when empty).
func NewHandler(registry *Registry, basePath string, logger *zap.Logger) *Handler {
	if basePath == "" {
		basePath = server.DefaultBasePath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: registry,
		base:     strings.TrimSuffix(basePath, "/"),
		logger:   logger,
	}
}

// RegisterRoutes registers theme routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+h.base+"/themes/{file}", h.handleStylesheet)
	mux.HandleFunc("GET "+h.base+"/api/themes", h.handleList)
}

// handleStylesheet serves one theme's CSS.
//
//	@Summary		Theme stylesheet
//	@Description	Returns the CSS text of a bundled or user theme.
//	@Tags			themes
//	@Produce		text/css
//	@Param			file	path		string	true	"Theme file, e.g. dark-modern.css"
//	@Success		200		{string}	string	"CSS"
//	@Failure		404		{object}	server.Envelope
//	@Router			/themes/{file} [get]
func (h *Handler) handleStylesheet(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	id, ok := strings.CutSuffix(file, ".css")
	if !ok || !idPattern.MatchString(id) {
		server.NotFound(w, "theme does not exist")
		return
	}

	t, err := h.registry.Get(id)
	if err != nil {
		server.NotFound(w, "theme does not exist")
		return
	}
	css, err := h.registry.CSS(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUnknownTheme) {
			server.NotFound(w, "theme does not exist")
			return
		}
		h.logger.Error("reading theme failed", zap.String("theme", id), zap.Error(err))
		server.InternalError(w, "failed to read theme")
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if !t.ModTime.IsZero() {
		w.Header().Set("Last-Modified", t.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(css))
}

// handleList returns all registered themes.
//
//	@Summary		List themes
//	@Tags			themes
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=[]Theme}
//	@Router			/api/themes [get]
func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	server.WriteData(w, h.registry.List())
}
