package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/expo-registration-api/internal/application/otp"
	"github.com/expo-registration-api/internal/domain"
	"go.uber.org/zap"
)

// OTPErrorEnvelope is the failure body of both OTP endpoints. Every OTP
// response carries a success flag.
type OTPErrorEnvelope struct {
	Success       bool                         `json:"success"`
	Error         string                       `json:"error"`
	Message       string                       `json:"message,omitempty"`
	RetryAfterSec int                          `json:"retryAfterSec,omitempty"`
	Existing      *domain.ExistingRegistration `json:"existing,omitempty"`
}

// OTPHandler serves /otp/send and /otp/verify.
type OTPHandler struct {
	svc otp.Service
	log *zap.Logger
}

func NewOTPHandler(svc otp.Service, log *zap.Logger) *OTPHandler {
	return &OTPHandler{svc: svc, log: log}
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req otp.SendRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Send(r.Context(), req)
	if err != nil {
		h.writeOTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Verify answers 200 with success=false for wrong, expired and unknown codes.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Verify(r.Context(), req)
	if err != nil {
		h.writeOTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := jsonDecode(r, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, OTPErrorEnvelope{Error: "invalid_request", Message: "Request body must be JSON"})
		return false
	}
	return true
}

func (h *OTPHandler) writeOTPError(w http.ResponseWriter, err error) {
	var oe *otp.Error
	if !errors.As(err, &oe) {
		h.log.Error("otp request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, OTPErrorEnvelope{Error: otp.CodeServerError, Message: "Server error"})
		return
	}
	status := statusFor(oe)
	if status == http.StatusServiceUnavailable {
		status = http.StatusInternalServerError
	}
	if oe.RetryAfterSec > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(oe.RetryAfterSec))
	}
	writeJSON(w, status, OTPErrorEnvelope{
		Error:         oe.Code,
		Message:       oe.Message,
		RetryAfterSec: oe.RetryAfterSec,
		Existing:      oe.Existing,
	})
}
