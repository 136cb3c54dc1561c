package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/expo-registration-api/internal/application/registration"
	"github.com/expo-registration-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// DuplicateEnvelope is the 409 body for an email that is already registered.
type DuplicateEnvelope struct {
	Error    string                      `json:"error"`
	Existing domain.ExistingRegistration `json:"existing"`
}

// RegistrationHandler handles registration CRUD for every registration type.
type RegistrationHandler struct {
	svc registration.Service
}

func NewRegistrationHandler(svc registration.Service) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

func (h *RegistrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	var req domain.CreateRegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reg, err := h.svc.Create(r.Context(), t, req)
	if err != nil {
		var dup *registration.DuplicateError
		if errors.As(err, &dup) {
			writeJSON(w, http.StatusConflict, DuplicateEnvelope{Error: "already_registered", Existing: dup.Existing})
			return
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	reg, err := h.svc.Get(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	regs, next, err := h.svc.List(r.Context(), t, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		httpError(w, err)
		return
	}
	if regs == nil {
		regs = []domain.Registration{}
	}
	writeJSON(w, http.StatusOK, PageEnvelope[domain.Registration]{Data: regs, NextCursor: next})
}

func (h *RegistrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	var req domain.UpdateRegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reg, err := h.svc.Update(r.Context(), t, chi.URLParam(r, "id"), req)
	if err != nil {
		var dup *registration.DuplicateError
		if errors.As(err, &dup) {
			writeJSON(w, http.StatusConflict, DuplicateEnvelope{Error: "already_registered", Existing: dup.Existing})
			return
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *RegistrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := registrationType(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), t, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "registration deleted"})
}

// registrationType resolves the {type} URL segment, writing a 400 on failure.
func registrationType(w http.ResponseWriter, r *http.Request) (domain.RegistrationType, bool) {
	t, err := domain.ParseRegistrationType(chi.URLParam(r, "type"))
	if err != nil {
		httpError(w, err)
		return "", false
	}
	return t, true
}
