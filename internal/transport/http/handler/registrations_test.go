package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/expo-registration-api/internal/application/registration"
	"github.com/expo-registration-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- mock ---

type mockRegistrationSvc struct{ mock.Mock }

func (m *mockRegistrationSvc) Create(ctx context.Context, t domain.RegistrationType, req domain.CreateRegistrationRequest) (*domain.Registration, error) {
	args := m.Called(ctx, t, req)
	if r, _ := args.Get(0).(*domain.Registration); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) Get(ctx context.Context, t domain.RegistrationType, id string) (*domain.Registration, error) {
	args := m.Called(ctx, t, id)
	if r, _ := args.Get(0).(*domain.Registration); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) List(ctx context.Context, t domain.RegistrationType, limit int, cursor string) ([]domain.Registration, string, error) {
	args := m.Called(ctx, t, limit, cursor)
	regs, _ := args.Get(0).([]domain.Registration)
	return regs, args.String(1), args.Error(2)
}

func (m *mockRegistrationSvc) Update(ctx context.Context, t domain.RegistrationType, id string, req domain.UpdateRegistrationRequest) (*domain.Registration, error) {
	args := m.Called(ctx, t, id, req)
	if r, _ := args.Get(0).(*domain.Registration); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) Delete(ctx context.Context, t domain.RegistrationType, id string) error {
	return m.Called(ctx, t, id).Error(0)
}

func (m *mockRegistrationSvc) FindExistingByEmail(ctx context.Context, t domain.RegistrationType, email string) (*domain.ExistingRegistration, error) {
	args := m.Called(ctx, t, email)
	if r, _ := args.Get(0).(*domain.ExistingRegistration); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- tests ---

func TestCreateRegistration_UnknownType(t *testing.T) {
	svc := &mockRegistrationSvc{}
	r := withChiParams(postJSON("/v1/registrations/sponsor", `{}`), "type", "sponsor")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).Create(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRegistration_Created(t *testing.T) {
	svc := &mockRegistrationSvc{}
	req := domain.CreateRegistrationRequest{Email: "ana@expo.io", Name: "Ana", Fields: map[string]any{"booth": "A1"}}
	svc.On("Create", mock.Anything, domain.RegistrationExhibitor, req).
		Return(&domain.Registration{ID: "01J", Type: domain.RegistrationExhibitor, Email: "ana@expo.io", TicketCode: "EXH-ABCDEFGH"}, nil)

	r := withChiParams(postJSON("/v1/registrations/exhibitor", `{"email":"ana@expo.io","name":"Ana","fields":{"booth":"A1"}}`), "type", "exhibitor")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).Create(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decodeMap(t, rr)
	assert.Equal(t, "EXH-ABCDEFGH", body["ticket_code"])
	svc.AssertExpectations(t)
}

func TestCreateRegistration_Duplicate(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("Create", mock.Anything, domain.RegistrationVisitor, mock.Anything).
		Return(nil, &registration.DuplicateError{Existing: domain.ExistingRegistration{ID: "01J", TicketCode: "VIS-ABCDEFGH"}})

	r := withChiParams(postJSON("/v1/registrations/visitor", `{"email":"ana@expo.io","name":"Ana"}`), "type", "visitor")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).Create(rr, r)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"error":"already_registered","existing":{"id":"01J","ticket_code":"VIS-ABCDEFGH"}}`, rr.Body.String())
}

func TestGetRegistration_NotFound(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("Get", mock.Anything, domain.RegistrationVisitor, "missing").Return(nil, domain.ErrNotFound)

	r := withChiParams(httptest.NewRequest(http.MethodGet, "/v1/registrations/visitor/missing", nil), "type", "visitor", "id", "missing")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).Get(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListRegistrations_PassesCursor(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("List", mock.Anything, domain.RegistrationSpeaker, 20, "abc").
		Return([]domain.Registration{{ID: "01J"}}, "next-cursor", nil)

	r := withChiParams(httptest.NewRequest(http.MethodGet, "/v1/registrations/speaker?limit=20&cursor=abc", nil), "type", "speaker")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).List(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeMap(t, rr)
	assert.Equal(t, "next-cursor", body["next_cursor"])
	assert.Len(t, body["data"], 1)
}

func TestListRegistrations_EmptyIsArray(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("List", mock.Anything, domain.RegistrationPartner, 0, "").Return(nil, "", nil)

	r := withChiParams(httptest.NewRequest(http.MethodGet, "/v1/registrations/partner", nil), "type", "partner")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).List(rr, r)
	assert.JSONEq(t, `{"data":[]}`, rr.Body.String())
}

func TestUpdateRegistration_BadRequest(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("Update", mock.Anything, domain.RegistrationAwardee, "01J", mock.Anything).Return(nil, domain.ErrBadRequest)

	r := withChiParams(postJSON("/v1/registrations/awardee/01J", `{"status":"bogus"}`), "type", "awardee", "id", "01J")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).Update(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteRegistration(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("Delete", mock.Anything, domain.RegistrationVisitor, "01J").Return(nil)

	r := withChiParams(httptest.NewRequest(http.MethodDelete, "/v1/registrations/visitor/01J", nil), "type", "visitor", "id", "01J")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).Delete(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestHTTPError_HidesInternalDetail(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("Delete", mock.Anything, domain.RegistrationVisitor, "01J").Return(assert.AnError)

	r := withChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), "type", "visitor", "id", "01J")
	rr := httptest.NewRecorder()
	NewRegistrationHandler(svc).Delete(rr, r)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
}
