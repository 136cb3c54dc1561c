package domain

import (
	"fmt"
	"strings"
	"time"
)

// RegistrationType is the closed set of registration categories.
type RegistrationType string

const (
	RegistrationVisitor   RegistrationType = "visitor"
	RegistrationExhibitor RegistrationType = "exhibitor"
	RegistrationSpeaker   RegistrationType = "speaker"
	RegistrationPartner   RegistrationType = "partner"
	RegistrationAwardee   RegistrationType = "awardee"
)

type registrationTypeInfo struct {
	collection   string
	ticketPrefix string
	label        string
}

var registrationTypes = map[RegistrationType]registrationTypeInfo{
	RegistrationVisitor:   {collection: "visitors", ticketPrefix: "VIS", label: "Visitor"},
	RegistrationExhibitor: {collection: "exhibitors", ticketPrefix: "EXH", label: "Exhibitor"},
	RegistrationSpeaker:   {collection: "speakers", ticketPrefix: "SPK", label: "Speaker"},
	RegistrationPartner:   {collection: "partners", ticketPrefix: "PRT", label: "Partner"},
	RegistrationAwardee:   {collection: "awardees", ticketPrefix: "AWD", label: "Awardee"},
}

// ParseRegistrationType maps a client-supplied category to a known RegistrationType.
// Unknown values are rejected rather than falling through to a default collection.
func ParseRegistrationType(raw string) (RegistrationType, error) {
	t := RegistrationType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := registrationTypes[t]; !ok {
		return "", fmt.Errorf("unknown registration type %q: %w", raw, ErrBadRequest)
	}
	return t, nil
}

// RegistrationTypes lists every category in a stable order.
func RegistrationTypes() []RegistrationType {
	return []RegistrationType{
		RegistrationVisitor,
		RegistrationExhibitor,
		RegistrationSpeaker,
		RegistrationPartner,
		RegistrationAwardee,
	}
}

// Collection returns the logical collection backing this category.
func (t RegistrationType) Collection() string { return registrationTypes[t].collection }

// TicketPrefix returns the three-letter prefix used in ticket codes.
func (t RegistrationType) TicketPrefix() string { return registrationTypes[t].ticketPrefix }

// Label is the human-readable category name used in emails.
func (t RegistrationType) Label() string { return registrationTypes[t].label }

const (
	StatusRegistered = "registered"
	StatusCheckedIn  = "checked_in"
	StatusCancelled  = "cancelled"
)

// Registration is a persisted form submission. Dynamic form answers live in Fields,
// keyed by normalized field name, and are stored at the top level of the document.
type Registration struct {
	ID         string           `json:"id" dynamodbav:"id" bson:"_id"`
	Type       RegistrationType `json:"registration_type" dynamodbav:"registration_type" bson:"registration_type"`
	Email      string           `json:"email" dynamodbav:"email" bson:"email"`
	Name       string           `json:"name" dynamodbav:"name" bson:"name"`
	Phone      string           `json:"phone,omitempty" dynamodbav:"phone,omitempty" bson:"phone,omitempty"`
	Company    string           `json:"company,omitempty" dynamodbav:"company,omitempty" bson:"company,omitempty"`
	TicketCode string           `json:"ticket_code" dynamodbav:"ticket_code" bson:"ticket_code"`
	Status     string           `json:"status" dynamodbav:"status" bson:"status"`
	Fields     map[string]any   `json:"fields,omitempty" dynamodbav:"-" bson:",inline"`
	CreatedAt  time.Time        `json:"created_at" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" dynamodbav:"updated_at" bson:"updated_at"`
}

var reservedFields = map[string]struct{}{
	"_id": {}, "id": {}, "registration_type": {}, "email": {}, "name": {}, "phone": {},
	"company": {}, "ticket_code": {}, "status": {}, "created_at": {}, "updated_at": {},
}

// IsReservedField reports whether name collides with a fixed registration attribute.
func IsReservedField(name string) bool {
	_, ok := reservedFields[name]
	return ok
}

// ExistingRegistration is the minimal view returned by duplicate checks.
type ExistingRegistration struct {
	ID         string `json:"id"`
	TicketCode string `json:"ticket_code"`
}

type CreateRegistrationRequest struct {
	Email   string         `json:"email" validate:"required,email"`
	Name    string         `json:"name" validate:"required,max=200"`
	Phone   string         `json:"phone" validate:"omitempty,max=32"`
	Company string         `json:"company" validate:"omitempty,max=200"`
	Fields  map[string]any `json:"fields"`
}

type UpdateRegistrationRequest struct {
	Email   *string        `json:"email" validate:"omitempty,email"`
	Name    *string        `json:"name" validate:"omitempty,max=200"`
	Phone   *string        `json:"phone" validate:"omitempty,max=32"`
	Company *string        `json:"company" validate:"omitempty,max=200"`
	Status  *string        `json:"status" validate:"omitempty,oneof=registered checked_in cancelled"`
	Fields  map[string]any `json:"fields"`
}

// RegistrationEvent is published to subscribers when a registration changes.
type RegistrationEvent struct {
	Event            string           `json:"event"`
	RegistrationID   string           `json:"registration_id"`
	RegistrationType RegistrationType `json:"registration_type"`
	Email            string           `json:"email"`
	TicketCode       string           `json:"ticket_code"`
	OccurredAt       time.Time        `json:"occurred_at"`
}

const EventRegistrationCreated = "registration.created"
