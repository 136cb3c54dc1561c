package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/expo-registration-api/internal/application/otp"
	"github.com/expo-registration-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- mock ---

type mockOTPSvc struct{ mock.Mock }

func (m *mockOTPSvc) Send(ctx context.Context, req otp.SendRequest) (*otp.SendResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*otp.SendResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOTPSvc) Verify(ctx context.Context, req otp.VerifyRequest) (*otp.VerifyResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*otp.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOTPSvc) Sweep(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func postJSON(target, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&m))
	return m
}

// --- Send tests ---

func TestOTPSend_Success(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Send", mock.Anything, otp.SendRequest{Type: "email", Value: "a@b.co", RequestID: "r1", RegistrationType: "visitor"}).
		Return(&otp.SendResult{Success: true, Email: "a@b.co", RegistrationType: domain.RegistrationVisitor, ExpiresInSec: 300, ResendCooldownSec: 60}, nil)
	h := NewOTPHandler(svc, zap.NewNop())

	rr := httptest.NewRecorder()
	h.Send(rr, postJSON("/v1/otp/send", `{"type":"email","value":"a@b.co","requestId":"r1","registrationType":"visitor"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"email":"a@b.co","registrationType":"visitor","expiresInSec":300,"resendCooldownSec":60}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestOTPSend_InvalidBody(t *testing.T) {
	h := NewOTPHandler(&mockOTPSvc{}, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Send(rr, postJSON("/v1/otp/send", "not-json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, false, decodeMap(t, rr)["success"])
}

func TestOTPSend_ErrorMapping(t *testing.T) {
	existing := &domain.ExistingRegistration{ID: "01J", TicketCode: "VIS-ABCDEFGH"}
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid email", &otp.Error{Code: otp.CodeInvalidEmail, Kind: domain.ErrBadRequest}, http.StatusBadRequest, otp.CodeInvalidEmail},
		{"already registered", &otp.Error{Code: otp.CodeAlreadyRegistered, Existing: existing, Kind: domain.ErrConflict}, http.StatusConflict, otp.CodeAlreadyRegistered},
		{"cooldown", &otp.Error{Code: otp.CodeResendCooldown, RetryAfterSec: 42, Kind: domain.ErrRateLimited}, http.StatusTooManyRequests, otp.CodeResendCooldown},
		{"send failed", &otp.Error{Code: otp.CodeSendFailed, Kind: domain.ErrUnavailable}, http.StatusInternalServerError, otp.CodeSendFailed},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, otp.CodeServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockOTPSvc{}
			svc.On("Send", mock.Anything, mock.Anything).Return(nil, tc.err)
			rr := httptest.NewRecorder()
			NewOTPHandler(svc, zap.NewNop()).Send(rr, postJSON("/v1/otp/send", `{}`))
			assert.Equal(t, tc.status, rr.Code)
			body := decodeMap(t, rr)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.code, body["error"])
		})
	}
}

func TestOTPSend_ConflictCarriesExisting(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Send", mock.Anything, mock.Anything).Return(nil, &otp.Error{
		Code:     otp.CodeAlreadyRegistered,
		Message:  "This email is already registered",
		Existing: &domain.ExistingRegistration{ID: "01J", TicketCode: "VIS-ABCDEFGH"},
		Kind:     domain.ErrConflict,
	})
	rr := httptest.NewRecorder()
	NewOTPHandler(svc, zap.NewNop()).Send(rr, postJSON("/v1/otp/send", `{}`))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":"already_registered","message":"This email is already registered","existing":{"id":"01J","ticket_code":"VIS-ABCDEFGH"}}`, rr.Body.String())
}

func TestOTPSend_RateLimitSetsRetryAfter(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Send", mock.Anything, mock.Anything).Return(nil, &otp.Error{Code: otp.CodeResendCooldown, RetryAfterSec: 42, Kind: domain.ErrRateLimited})
	rr := httptest.NewRecorder()
	NewOTPHandler(svc, zap.NewNop()).Send(rr, postJSON("/v1/otp/send", `{}`))
	assert.Equal(t, "42", rr.Header().Get("Retry-After"))
	assert.EqualValues(t, 42, decodeMap(t, rr)["retryAfterSec"])
}

// --- Verify tests ---

func TestOTPVerify_WrongCodeIsNotHTTPError(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Verify", mock.Anything, otp.VerifyRequest{Value: "a@b.co", OTP: "000000", RegistrationType: "visitor"}).
		Return(&otp.VerifyResult{Success: false, Error: "Incorrect OTP"}, nil)

	rr := httptest.NewRecorder()
	NewOTPHandler(svc, zap.NewNop()).Verify(rr, postJSON("/v1/otp/verify", `{"value":"a@b.co","otp":"000000","registrationType":"visitor"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeMap(t, rr)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Incorrect OTP", body["error"])
}

func TestOTPVerify_SuccessWithExisting(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Verify", mock.Anything, mock.Anything).Return(&otp.VerifyResult{
		Success:          true,
		Email:            "a@b.co",
		RegistrationType: domain.RegistrationSpeaker,
		Existing:         &domain.ExistingRegistration{ID: "01J", TicketCode: "SPK-ABCDEFGH"},
	}, nil)

	rr := httptest.NewRecorder()
	NewOTPHandler(svc, zap.NewNop()).Verify(rr, postJSON("/v1/otp/verify", `{"value":"a@b.co","otp":"123456","registrationType":"speaker"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"email":"a@b.co","registrationType":"speaker","existing":{"id":"01J","ticket_code":"SPK-ABCDEFGH"}}`, rr.Body.String())
}

func TestOTPVerify_TooManyAttempts(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Verify", mock.Anything, mock.Anything).Return(nil, &otp.Error{Code: otp.CodeTooManyAttempts, Kind: domain.ErrRateLimited})
	rr := httptest.NewRecorder()
	NewOTPHandler(svc, zap.NewNop()).Verify(rr, postJSON("/v1/otp/verify", `{}`))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, otp.CodeTooManyAttempts, decodeMap(t, rr)["error"])
}
