package models

import "fmt"

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// HealthCheckResponse is returned by the health endpoint.
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

// ValidationError rejects bad input before any state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransition is returned when a state machine is asked to move between
// states its transition table does not allow. No side effects are applied.
type InvalidTransition struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Entity, e.From, e.To)
}
