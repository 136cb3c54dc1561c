package domain

import "time"

// RegistrationConfig is the admin-edited form definition for one registration type.
type RegistrationConfig struct {
	Type        RegistrationType `json:"registration_type" dynamodbav:"registration_type" bson:"_id"`
	Title       string           `json:"title,omitempty" dynamodbav:"title,omitempty" bson:"title,omitempty"`
	Description string           `json:"description,omitempty" dynamodbav:"description,omitempty" bson:"description,omitempty"`
	Fields      []FormField      `json:"fields" dynamodbav:"fields" bson:"fields"`
	UpdatedAt   time.Time        `json:"updated_at" dynamodbav:"updated_at" bson:"updated_at"`
}

type SaveConfigRequest struct {
	Title       string      `json:"title" validate:"max=200"`
	Description string      `json:"description" validate:"max=2000"`
	Fields      []FormField `json:"fields"`
}
