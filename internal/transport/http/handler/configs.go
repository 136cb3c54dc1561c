package handler

import (
	"net/http"

	"github.com/expo-registration-api/internal/application/regconfig"
	"github.com/expo-registration-api/internal/domain"
	"go.uber.org/zap"
)

// ConfigEnvelope is returned by a config save: the stored config plus the
// advisory outcome of the dynamic-field sync.
type ConfigEnvelope struct {
	Config *domain.RegistrationConfig `json:"config"`
	Sync   *domain.SyncResult         `json:"sync,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

// ConfigHandler serves registration-type form configuration.
type ConfigHandler struct {
	svc regconfig.Service
	log *zap.Logger
}

func NewConfigHandler(svc regconfig.Service, log *zap.Logger) *ConfigHandler {
	return &ConfigHandler{svc: svc, log: log}
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), t)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Save answers 500 with the stored config when only the field sync failed.
func (h *ConfigHandler) Save(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	var req domain.SaveConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, res, err := h.svc.Save(r.Context(), t, req)
	if err != nil {
		if c != nil {
			writeJSON(w, http.StatusInternalServerError, ConfigEnvelope{Config: c, Error: "config saved but dynamic field sync failed"})
			return
		}
		httpError(w, err)
		return
	}
	if res != nil && len(res.Errors) > 0 {
		h.log.Warn("dynamic field sync finished with errors",
			zap.String("registration_type", string(t)), zap.Any("errors", res.Errors))
	}
	writeJSON(w, http.StatusOK, ConfigEnvelope{Config: c, Sync: res})
}

func (h *ConfigHandler) DynamicFields(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	fields, err := h.svc.DynamicFields(r.Context(), t)
	if err != nil {
		httpError(w, err)
		return
	}
	if fields == nil {
		fields = []domain.DynamicField{}
	}
	writeJSON(w, http.StatusOK, DataEnvelope[domain.DynamicField]{Data: fields})
}
