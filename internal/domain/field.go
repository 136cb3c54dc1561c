package domain

import "time"

// FormField is one admin-configured input on a registration form.
type FormField struct {
	Name        string   `json:"name" dynamodbav:"name" bson:"name"`
	Label       string   `json:"label,omitempty" dynamodbav:"label,omitempty" bson:"label,omitempty"`
	Type        string   `json:"type,omitempty" dynamodbav:"type,omitempty" bson:"type,omitempty"`
	Required    bool     `json:"required" dynamodbav:"required" bson:"required"`
	Placeholder string   `json:"placeholder,omitempty" dynamodbav:"placeholder,omitempty" bson:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty" dynamodbav:"options,omitempty" bson:"options,omitempty"`
}

// DynamicField marks a normalized field name as active for a collection.
// (CollectionName, FieldName) is unique.
type DynamicField struct {
	CollectionName string    `json:"collection_name" dynamodbav:"collection_name" bson:"collection_name"`
	FieldName      string    `json:"field_name" dynamodbav:"field_name" bson:"field_name"`
	OrigName       string    `json:"orig_name" dynamodbav:"orig_name" bson:"orig_name"`
	FieldType      string    `json:"field_type" dynamodbav:"field_type" bson:"field_type"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at" bson:"created_at"`
}

// SyncResult is the advisory outcome of a dynamic-field synchronization.
type SyncResult struct {
	Added   []string    `json:"added"`
	Removed []string    `json:"removed"`
	Errors  []SyncError `json:"errors"`
}

type SyncError struct {
	Action string `json:"action"`
	Field  string `json:"field"`
	Error  string `json:"error"`
}
