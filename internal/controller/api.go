package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/HerbHall/mediatheme/internal/clientconfig"
	"github.com/HerbHall/mediatheme/internal/server"
	"github.com/HerbHall/mediatheme/internal/theme"
	"go.uber.org/zap"
)

// Request body bounds.
const (
	maxPartialBytes = 64 << 10
	maxImportBytes  = 256 << 10
)

// exportFilename is suggested to browsers downloading an export.
const exportFilename = "emby-ui-config.json"

// API is the public surface of a Controller, also served over HTTP under
// {base}/api/enhancer.
type API struct {
	c      *Controller
	base   string
	logger *zap.Logger
}

// NewAPI wraps c. basePath is the add-on base (server.DefaultBasePath when
// empty).
func NewAPI(c *Controller, basePath string, logger *zap.Logger) *API {
	if basePath == "" {
		basePath = server.DefaultBasePath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{c: c, base: strings.TrimSuffix(basePath, "/"), logger: logger}
}

// ChangeTheme applies theme id.
func (a *API) ChangeTheme(ctx context.Context, id string) error { return a.c.ApplyTheme(ctx, id) }

// GetConfig returns a copy of the runtime config.
func (a *API) GetConfig() clientconfig.Config { return a.c.Config() }

// UpdateConfig merges partial into the runtime config.
func (a *API) UpdateConfig(ctx context.Context, partial map[string]any) (clientconfig.Config, error) {
	return a.c.UpdateConfig(ctx, partial)
}

// GetThemes returns the registered themes.
func (a *API) GetThemes() []theme.Theme { return a.c.Themes() }

// Reload tears down and re-runs setup.
func (a *API) Reload(ctx context.Context) { a.c.Reload(ctx) }

// Status is returned by GET {base}/api/enhancer.
type Status struct {
	State        State    `json:"state" swaggertype:"string" example:"ready"`
	CurrentTheme string   `json:"currentTheme" example:"dark-modern"`
	Styles       []string `json:"styles"`
}

// RegisterRoutes registers the enhancer routes on the mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	p := a.base + "/api/enhancer"
	mux.HandleFunc("GET "+p, a.handleStatus)
	mux.HandleFunc("GET "+p+"/config", a.handleGetConfig)
	mux.HandleFunc("PUT "+p+"/config", a.handleUpdateConfig)
	mux.HandleFunc("GET "+p+"/config/export", a.handleExport)
	mux.HandleFunc("POST "+p+"/config/import", a.handleImport)
	mux.HandleFunc("POST "+p+"/config/reset", a.handleReset)
	mux.HandleFunc("DELETE "+p+"/config/cache", a.handleForgetLocal)
	mux.HandleFunc("GET "+p+"/config/value/{path}", a.handleGetValue)
	mux.HandleFunc("PUT "+p+"/config/value/{path}", a.handleSetValue)
	mux.HandleFunc("GET "+p+"/themes", a.handleThemes)
	mux.HandleFunc("POST "+p+"/theme/{id}", a.handleChangeTheme)
	mux.HandleFunc("POST "+p+"/reload", a.handleReload)
}

// handleStatus reports the controller state.
//
//	@Summary		Enhancer status
//	@Tags			enhancer
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=Status}
//	@Router			/api/enhancer [get]
func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	server.WriteData(w, a.c.Status())
}

// handleGetConfig returns the runtime config.
//
//	@Summary		Get runtime config
//	@Tags			enhancer
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=clientconfig.Config}
//	@Router			/api/enhancer/config [get]
func (a *API) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	server.WriteData(w, a.GetConfig())
}

// handleUpdateConfig merges a partial runtime config.
//
//	@Summary		Update runtime config
//	@Description	Merges the given fields into the runtime config and re-applies the theme if it changed.
//	@Tags			enhancer
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object	true	"Partial config"
//	@Success		200		{object}	server.Envelope{data=clientconfig.Config}
//	@Failure		400		{object}	server.Envelope
//	@Router			/api/enhancer/config [put]
func (a *API) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPartialBytes))
	if err != nil {
		server.BadRequest(w, "invalid JSON data")
		return
	}
	partial := map[string]any{}
	if err := json.Unmarshal(body, &partial); err != nil {
		server.BadRequest(w, "invalid JSON data")
		return
	}

	cfg, err := a.UpdateConfig(r.Context(), partial)
	if err != nil {
		// The runtime config changed; only the local cache failed.
		a.logger.Warn("runtime config not persisted", zap.Error(err))
	}
	server.WriteData(w, cfg)
}

// handleExport downloads the stored runtime config.
//
//	@Summary		Export runtime config
//	@Tags			enhancer
//	@Produce		json
//	@Success		200	{object}	clientconfig.Export
//	@Failure		501	{object}	server.Envelope
//	@Router			/api/enhancer/config/export [get]
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := a.c.ExportConfig(r.Context())
	if err != nil {
		a.writePortError(w, err, "failed to export config")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	_, _ = w.Write(data)
}

// handleImport replaces the runtime config with an export document.
//
//	@Summary		Import runtime config
//	@Tags			enhancer
//	@Accept			json
//	@Produce		json
//	@Param			request	body		clientconfig.Export	true	"Export document"
//	@Success		200		{object}	server.Envelope{data=clientconfig.Config}
//	@Failure		400		{object}	server.Envelope
//	@Router			/api/enhancer/config/import [post]
func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		server.BadRequest(w, "import document too large or unreadable")
		return
	}
	cfg, err := a.c.ImportConfig(r.Context(), body)
	if err != nil {
		a.writePortError(w, err, "failed to import config")
		return
	}
	server.WriteData(w, cfg)
}

// handleReset restores the default runtime config.
//
//	@Summary		Reset runtime config
//	@Tags			enhancer
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=clientconfig.Config}
//	@Router			/api/enhancer/config/reset [post]
func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.c.ResetConfig(r.Context())
	if err != nil {
		a.writePortError(w, err, "failed to reset config")
		return
	}
	server.WriteData(w, cfg)
}

// handleForgetLocal drops the locally cached config and re-runs setup.
//
//	@Summary		Clear cached runtime config
//	@Tags			enhancer
//	@Produce		json
//	@Success		200	{object}	server.Envelope
//	@Router			/api/enhancer/config/cache [delete]
func (a *API) handleForgetLocal(w http.ResponseWriter, r *http.Request) {
	if err := a.c.ForgetLocalConfig(r.Context()); err != nil {
		a.writePortError(w, err, "failed to clear cached config")
		return
	}
	server.WriteMessage(w, "cached config cleared")
}

// handleGetValue reads one dot-path field, e.g. userPreferences.cardSpacing.
//
//	@Summary		Get config value
//	@Tags			enhancer
//	@Produce		json
//	@Param			path	path		string	true	"Dot-separated field path"
//	@Success		200		{object}	server.Envelope
//	@Failure		404		{object}	server.Envelope
//	@Router			/api/enhancer/config/value/{path} [get]
func (a *API) handleGetValue(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	v, ok, err := a.c.ConfigValue(r.Context(), path)
	if err != nil {
		a.writePortError(w, err, "failed to read config value")
		return
	}
	if !ok {
		server.NotFound(w, "no config value at "+path)
		return
	}
	server.WriteData(w, v)
}

// handleSetValue sets one dot-path field from a JSON value body.
//
//	@Summary		Set config value
//	@Description	A value that fails validation leaves the field at its default.
//	@Tags			enhancer
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string	true	"Dot-separated field path"
//	@Param			request	body		object	true	"JSON value"
//	@Success		200		{object}	server.Envelope{data=clientconfig.Config}
//	@Failure		400		{object}	server.Envelope
//	@Router			/api/enhancer/config/value/{path} [put]
func (a *API) handleSetValue(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") || strings.Contains(path, "..") {
		server.BadRequest(w, "invalid config path")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPartialBytes))
	if err != nil {
		server.BadRequest(w, "invalid JSON data")
		return
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		server.BadRequest(w, "invalid JSON data")
		return
	}

	cfg, err := a.c.SetConfigValue(r.Context(), path, value)
	if err != nil {
		a.writePortError(w, err, "failed to set config value")
		return
	}
	server.WriteData(w, cfg)
}

func (a *API) writePortError(w http.ResponseWriter, err error, detail string) {
	switch {
	case errors.Is(err, ErrNoPorter):
		server.WriteFailure(w, http.StatusNotImplemented, server.CodeInternal, err.Error())
	case errors.Is(err, clientconfig.ErrInvalidExport):
		server.WriteFailure(w, http.StatusBadRequest, server.CodeMalformedInput, err.Error())
	default:
		a.logger.Error(detail, zap.Error(err))
		server.InternalError(w, detail)
	}
}

// handleThemes lists the registered themes.
//
//	@Summary		List themes
//	@Tags			enhancer
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=[]theme.Theme}
//	@Router			/api/enhancer/themes [get]
func (a *API) handleThemes(w http.ResponseWriter, _ *http.Request) {
	server.WriteData(w, a.GetThemes())
}

// handleChangeTheme applies a theme.
//
//	@Summary		Change theme
//	@Tags			enhancer
//	@Produce		json
//	@Param			id	path		string	true	"Theme id"
//	@Success		200	{object}	server.Envelope
//	@Failure		404	{object}	server.Envelope
//	@Router			/api/enhancer/theme/{id} [post]
func (a *API) handleChangeTheme(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.ChangeTheme(r.Context(), id); err != nil {
		if errors.Is(err, theme.ErrUnknownTheme) {
			server.NotFound(w, err.Error())
			return
		}
		server.InternalError(w, "failed to apply theme")
		return
	}
	server.WriteMessage(w, "theme applied")
}

// handleReload re-runs setup.
//
//	@Summary		Reload enhancer
//	@Tags			enhancer
//	@Produce		json
//	@Success		200	{object}	server.Envelope
//	@Router			/api/enhancer/reload [post]
func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	a.Reload(r.Context())
	server.WriteMessage(w, "enhancer reloaded")
}
