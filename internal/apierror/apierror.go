// Package apierror defines the error envelope returned for every rejected
// operation. The shape is a compatibility surface consumed by the UI layer:
//
//	{"error": {"code", "message", "details"?, "resource"?, "resource_id"?, "path"}}
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error codes, each bound to a fixed HTTP status.
const (
	CodeMissingField      = "MISSING_FIELD"
	CodeAuthentication    = "AUTHENTICATION_ERROR"
	CodeAuthorization     = "AUTHORIZATION_ERROR"
	CodeNotFound          = "RESOURCE_NOT_FOUND"
	CodeAlreadyExists     = "RESOURCE_ALREADY_EXISTS"
	CodeConflict          = "RESOURCE_CONFLICT"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeInternalServerErr = "INTERNAL_SERVER_ERROR"
	CodeRateLimited       = "RATE_LIMITED"
)

// FieldDetail names a single invalid or missing request field.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an API-level failure carrying everything the envelope needs.
type Error struct {
	Code       string
	Message    string
	Status     int
	Details    []FieldDetail
	Resource   string
	ResourceID any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MissingField reports a single absent required field.
func MissingField(field string) *Error {
	return MissingFields([]string{field})
}

// MissingFields reports one or more absent required fields.
func MissingFields(fields []string) *Error {
	details := make([]FieldDetail, 0, len(fields))
	for _, field := range fields {
		details = append(details, FieldDetail{
			Field:   field,
			Message: fmt.Sprintf("field %q is required", field),
		})
	}
	return &Error{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("required fields: %s", strings.Join(fields, ", ")),
		Status:  http.StatusBadRequest,
		Details: details,
	}
}

// Authentication signals an absent, malformed or expired credential.
func Authentication(message string) *Error {
	if message == "" {
		message = "authentication required"
	}
	return &Error{Code: CodeAuthentication, Message: message, Status: http.StatusUnauthorized}
}

// Authorization signals a valid credential with insufficient rights.
func Authorization(message string) *Error {
	if message == "" {
		message = "access denied"
	}
	return &Error{Code: CodeAuthorization, Message: message, Status: http.StatusForbidden}
}

// NotFound reports a missing entity.
func NotFound(resource string, id any) *Error {
	message := fmt.Sprintf("%s not found", resource)
	if id != nil {
		message = fmt.Sprintf("%s not found (ID: %v)", resource, id)
	}
	return &Error{
		Code:       CodeNotFound,
		Message:    message,
		Status:     http.StatusNotFound,
		Resource:   resource,
		ResourceID: id,
	}
}

// AlreadyExists reports a uniqueness violation on create or rename.
func AlreadyExists(resource, field, value string) *Error {
	message := fmt.Sprintf("%s already exists", resource)
	if field != "" && value != "" {
		message = fmt.Sprintf("%s with %s %q already exists", resource, field, value)
	}
	return &Error{
		Code:     CodeAlreadyExists,
		Message:  message,
		Status:   http.StatusConflict,
		Resource: resource,
	}
}

// Conflict reports a domain-rule violation: invalid enum value, failed
// integer coercion on a write field, duplicate cast role assignment.
func Conflict(message, resource string) *Error {
	return &Error{
		Code:     CodeConflict,
		Message:  message,
		Status:   http.StatusConflict,
		Resource: resource,
	}
}

// MethodNotAllowed reports an unsupported verb on a known resource path.
func MethodNotAllowed() *Error {
	return &Error{
		Code:    CodeMethodNotAllowed,
		Message: "method not allowed for this resource",
		Status:  http.StatusMethodNotAllowed,
	}
}

// RateLimited reports that the caller exceeded the request budget for a
// sensitive endpoint.
func RateLimited() *Error {
	return &Error{
		Code:    CodeRateLimited,
		Message: "too many requests, try again later",
		Status:  http.StatusTooManyRequests,
	}
}

// Internal is the generic unhandled-failure error. It never carries
// internal detail; callers log the underlying cause separately.
func Internal() *Error {
	return &Error{
		Code:    CodeInternalServerErr,
		Message: "an internal error occurred, please try again later",
		Status:  http.StatusInternalServerError,
	}
}

type envelope struct {
	Error body `json:"error"`
}

type body struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Details    []FieldDetail `json:"details,omitempty"`
	Resource   string        `json:"resource,omitempty"`
	ResourceID any           `json:"resource_id,omitempty"`
	Path       string        `json:"path"`
}

// Write serializes the envelope for the request path with the error's status.
func Write(w http.ResponseWriter, r *http.Request, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(envelope{Error: body{
		Code:       e.Code,
		Message:    e.Message,
		Details:    e.Details,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Path:       r.URL.Path,
	}})
}
