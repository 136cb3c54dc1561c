package handler

import (
	"net/http"

	"github.com/expo-registration-api/internal/application/admin"
)

// AdminHandler issues admin console tokens.
type AdminHandler struct {
	svc admin.Service
}

func NewAdminHandler(svc admin.Service) *AdminHandler { return &AdminHandler{svc: svc} }

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req admin.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tok, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *AdminHandler) LoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req admin.GoogleLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tok, err := h.svc.LoginWithGoogle(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}
