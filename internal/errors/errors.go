// Package errors defines the typed error taxonomy used across the mediator:
// configuration errors, transient/permanent upstream failures, validation
// failures, consistency failures and inverse-relation partial failures.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the categories the service reasons
// about when deciding whether to retry, surface a 4xx, or surface a 5xx.
type Kind string

const (
	KindConfig             Kind = "config"
	KindUpstreamTransient  Kind = "upstream_transient"
	KindUpstreamPermanent  Kind = "upstream_permanent"
	KindValidation         Kind = "validation"
	KindConsistency        Kind = "consistency"
	KindInverseRelationFail Kind = "inverse_relation_partial_failure"
	KindInternal           Kind = "internal"
	KindNotFound           Kind = "not_found"
)

// Error is the mediator's structured error type. It carries enough
// information for callers to branch on Kind/Code programmatically while
// still rendering a readable Message for logs and API responses.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error Kind onto the status code the outer transport
// layer should respond with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindConfig, KindInternal:
		return http.StatusInternalServerError
	case KindUpstreamTransient:
		return http.StatusBadGateway
	case KindUpstreamPermanent:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	case KindConsistency:
		return http.StatusConflict
	case KindInverseRelationFail:
		return http.StatusMultiStatus
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the underlying condition is expected to clear
// on its own, i.e. whether the gateway's retry loop should keep trying.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstreamTransient
}

// WithDetails attaches structured context (entity id, relation name,
// attempt count, ...) used by logging and API error payloads.
func (e *Error) WithDetails(d map[string]interface{}) *Error {
	e.Details = d
	return e
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// As mirrors errors.As for *Error, letting callers recover the structured
// error out of a wrapped chain.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// Is mirrors errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Common sentinel-style constructors used throughout the codebase.

func NotFound(entityKind, id string) *Error {
	return New(KindNotFound, "ENTITY_NOT_FOUND", fmt.Sprintf("%s %s not found", entityKind, id)).
		WithDetails(map[string]interface{}{"kind": entityKind, "id": id})
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func UpstreamTransient(message string, cause error) *Error {
	return Wrap(KindUpstreamTransient, "UPSTREAM_TRANSIENT", message, cause)
}

func UpstreamPermanent(message string, cause error) *Error {
	return Wrap(KindUpstreamPermanent, "UPSTREAM_PERMANENT", message, cause)
}

func Consistency(message string) *Error {
	return New(KindConsistency, "CONSISTENCY_VIOLATION", message)
}

func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, "INTERNAL", message, cause)
}

// InverseRelationPartialFailure reports that the primary write succeeded but
// one or more back-reference updates on related entities did not.
type InverseRelationPartialFailure struct {
	*Error
	FailedRelations []FailedRelation
}

type FailedRelation struct {
	EntityID string
	Relation string
	Cause    error
}

func NewInverseRelationPartialFailure(failed []FailedRelation) *InverseRelationPartialFailure {
	base := New(KindInverseRelationFail, "INVERSE_RELATION_PARTIAL_FAILURE",
		fmt.Sprintf("%d inverse relation update(s) failed", len(failed)))
	return &InverseRelationPartialFailure{Error: base, FailedRelations: failed}
}
