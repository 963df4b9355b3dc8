package contract

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeNotFound          ErrorCode = "not_found"
	CodeMethodNotAllowed  ErrorCode = "method_not_allowed"
	CodeConflict          ErrorCode = "conflict"
	CodeGone              ErrorCode = "gone"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeInternal          ErrorCode = "internal"
	CodeNotImplemented    ErrorCode = "not_implemented"
	CodeUnavailable       ErrorCode = "unavailable"
	CodeDeadlineExceeded  ErrorCode = "deadline_exceeded"
)

// HTTPStatus maps an ErrorCode to an HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeConflict:
		return http.StatusConflict
	case CodeGone:
		return http.StatusGone
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeInternal:
		return http.StatusInternalServerError
	case CodeNotImplemented:
		return http.StatusNotImplemented
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// StatusCoder is implemented by errors that carry an HTTP status code.
// Server handlers return such errors to choose the response status.
type StatusCoder interface {
	StatusCode() int
}

// APIError is an application error with a code and an HTTP status.
type APIError struct {
	Code    ErrorCode      `json:"code"`
	Status  int            `json:"status,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode returns Status when set, otherwise the status implied by Code.
func (e *APIError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Code.HTTPStatus()
}

// NewError creates a new API error.
func NewError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new API error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *APIError {
	return &APIError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// StatusError creates an API error for an explicit HTTP status.
func StatusError(status int, message string) *APIError {
	return &APIError{
		Code:    codeForStatus(status),
		Status:  status,
		Message: message,
	}
}

// WithDetail returns a new APIError with the key-value pair added to details.
func (e *APIError) WithDetail(key string, value any) *APIError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &APIError{
		Code:    e.Code,
		Status:  e.Status,
		Message: e.Message,
		Details: details,
	}
}

// WithDetails returns a new APIError with the provided map merged into details.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &APIError{
		Code:    e.Code,
		Status:  e.Status,
		Message: e.Message,
		Details: merged,
	}
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidArgument
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusConflict:
		return CodeConflict
	case http.StatusGone:
		return CodeGone
	case http.StatusTooManyRequests:
		return CodeResourceExhausted
	case http.StatusNotImplemented:
		return CodeNotImplemented
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusGatewayTimeout:
		return CodeDeadlineExceeded
	default:
		return CodeInternal
	}
}

// ErrorStatus extracts the HTTP status from err. ok is false when err
// does not carry a status.
func ErrorStatus(err error) (status int, ok bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return http.StatusInternalServerError, false
}

// DuplicatePathError reports two endpoints sharing a method and path.
type DuplicatePathError struct {
	Method Method
	Path   string
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("contract: duplicate path '%s %s'", e.Method, e.Path)
}

// DuplicateAliasError reports two endpoints sharing an alias.
type DuplicateAliasError struct {
	Alias string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("contract: duplicate alias '%s'", e.Alias)
}

// MultipleBodyParametersError reports an endpoint declaring more than one Body parameter.
type MultipleBodyParametersError struct {
	Method Method
	Path   string
}

func (e *MultipleBodyParametersError) Error() string {
	return fmt.Sprintf("contract: multiple body parameters in endpoint '%s %s'", e.Method, e.Path)
}

// InvalidEndpointError reports a definition that cannot be registered at all.
type InvalidEndpointError struct {
	Method Method
	Path   string
	Reason string
}

func (e *InvalidEndpointError) Error() string {
	return fmt.Sprintf("contract: invalid endpoint '%s %s': %s", e.Method, e.Path, e.Reason)
}

// NotFoundError reports a lookup with no match. Key is the alias or "method path".
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("contract: endpoint '%s' not found", e.Key)
}

// AmbiguousError reports a lookup matching more than one endpoint.
type AmbiguousError struct {
	Key   string
	Count int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("contract: endpoint '%s' is not unique (%d matches)", e.Key, e.Count)
}

// ValidationError reports a request parameter rejected by its schema.
type ValidationError struct {
	Type  ParamType
	Name  string
	Cause error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("contract: invalid %s parameter '%s': %v", e.Type, e.Name, e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// ResponseValidationError reports a response body rejected by the endpoint's response schema.
type ResponseValidationError struct {
	Method     Method
	Path       string
	Status     int
	StatusText string
	Cause      error
}

func (e *ResponseValidationError) Error() string {
	return fmt.Sprintf("contract: invalid response from endpoint '%s %s'\nstatus: %d %s\ncause:\n%v",
		e.Method, e.Path, e.Status, e.StatusText, e.Cause)
}

func (e *ResponseValidationError) Unwrap() error { return e.Cause }
