package configstore

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/HerbHall/mediatheme/internal/server"
	"go.uber.org/zap"
)

// DefaultBasePath is where the config API is mounted.
const DefaultBasePath = "/emby-ui-plugin/api/config"

// maxBodyBytes bounds a config upload.
const maxBodyBytes = 1 << 20

// Handler exposes a Store over HTTP.
type Handler struct {
	store  *Store
	base   string
	logger *zap.Logger
}

// NewHandler creates a config API handler mounted at basePath
// (DefaultBasePath when empty).
func NewHandler(store *Store, basePath string, logger *zap.Logger) *Handler {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  store,
		base:   strings.TrimSuffix(basePath, "/"),
		logger: logger,
	}
}

// RegisterRoutes registers config routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	b := h.base

	// Literal paths before the catch-all.
	mux.HandleFunc("GET "+b+"/backups", h.handleListBackups)
	mux.HandleFunc("GET "+b+"/system", h.handleSystemInfo)
	mux.HandleFunc("DELETE "+b+"/backups/{name}", h.handleDeleteBackup)
	mux.HandleFunc("POST "+b+"/backups/{name}/restore", h.handleRestoreBackup)

	for _, p := range []string{b, b + "/"} {
		mux.HandleFunc("GET "+p, h.handleGetConfig)
		mux.HandleFunc("POST "+p, h.handleSaveConfig)
		mux.HandleFunc("PUT "+p, h.handleSaveConfig)
		mux.HandleFunc(p, h.handleFallback)
	}
}

// handleGetConfig returns the current configuration merged over defaults.
//
//	@Summary		Get configuration
//	@Description	Returns the stored configuration with missing fields filled from defaults.
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	server.Envelope
//	@Router			/config [get]
func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	server.WriteData(w, h.store.Load(r.Context()))
}

// handleSaveConfig validates and stores a new configuration.
//
//	@Summary		Save configuration
//	@Description	Validates the document, snapshots the current file, and replaces it.
//	@Tags			config
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object			true	"Configuration document"
//	@Success		200		{object}	server.Envelope	"Saved"
//	@Failure		400		{object}	server.Envelope	"Invalid JSON"
//	@Failure		500		{object}	server.Envelope	"Validation or write failure"
//	@Router			/config [post]
func (h *Handler) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		server.BadRequest(w, "invalid JSON data")
		return
	}
	doc, err := ParseDocument(body)
	if err != nil {
		server.BadRequest(w, "invalid JSON data")
		return
	}

	if err := h.store.Save(r.Context(), doc); err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			server.WriteFailure(w, http.StatusInternalServerError, server.CodeValidation, err.Error())
		default:
			h.logger.Error("save config failed", zap.Error(err))
			server.WriteFailure(w, http.StatusInternalServerError, server.CodeIO, "failed to save config")
		}
		return
	}

	server.WriteMessage(w, "config saved")
}

// handleListBackups lists backup snapshots, newest first.
//
//	@Summary		List backups
//	@Description	Returns backup snapshots sorted by timestamp, newest first.
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=[]Backup}
//	@Failure		500	{object}	server.Envelope
//	@Router			/config/backups [get]
func (h *Handler) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.store.ListBackups(r.Context())
	if err != nil {
		h.logger.Error("list backups failed", zap.Error(err))
		server.WriteFailure(w, http.StatusInternalServerError, server.CodeIO, "failed to list backups")
		return
	}
	server.WriteData(w, backups)
}

// handleSystemInfo reports advisory host information.
//
//	@Summary		System information
//	@Description	Reports config directory writability, free disk space, and process memory.
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=SystemInfo}
//	@Router			/config/system [get]
func (h *Handler) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	server.WriteData(w, h.store.SystemInfo(r.Context()))
}

// handleDeleteBackup removes a backup snapshot.
//
//	@Summary		Delete backup
//	@Tags			config
//	@Produce		json
//	@Param			name	path		string			true	"Backup filename"
//	@Success		200		{object}	server.Envelope	"Deleted"
//	@Failure		404		{object}	server.Envelope	"Backup not found"
//	@Router			/config/backups/{name} [delete]
func (h *Handler) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.DeleteBackup(r.Context(), name); err != nil {
		h.writeBackupError(w, name, err)
		return
	}
	server.WriteMessage(w, "backup deleted")
}

// handleRestoreBackup copies a backup snapshot over the live config.
//
//	@Summary		Restore backup
//	@Tags			config
//	@Produce		json
//	@Param			name	path		string			true	"Backup filename"
//	@Success		200		{object}	server.Envelope	"Restored"
//	@Failure		404		{object}	server.Envelope	"Backup not found"
//	@Router			/config/backups/{name}/restore [post]
func (h *Handler) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.RestoreBackup(r.Context(), name); err != nil {
		h.writeBackupError(w, name, err)
		return
	}
	server.WriteMessage(w, "config restored from backup")
}

func (h *Handler) writeBackupError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		server.NotFound(w, "backup file does not exist")
	case errors.Is(err, ErrMalformedInput):
		server.WriteFailure(w, http.StatusInternalServerError, server.CodeMalformedInput, "backup file is not valid JSON")
	default:
		h.logger.Error("backup operation failed", zap.String("backup", name), zap.Error(err))
		server.WriteFailure(w, http.StatusInternalServerError, server.CodeIO, "backup operation failed")
	}
}

// handleFallback answers methods that have no route: OPTIONS preflight
// gets an empty 200, a DELETE without a backup name is a bad request, and
// everything else is 405.
func (h *Handler) handleFallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		server.BadRequest(w, "invalid delete request")
	default:
		server.MethodNotAllowed(w)
	}
}
