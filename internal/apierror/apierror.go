// Package apierror implements C10, the ErrorMapper: the closed set of
// canonical error kinds spec.md §4.9 defines, and their mapping to HTTP
// status and an OpenAI-shaped error body.
package apierror

import "fmt"

// Kind is one of the closed set of canonical error kinds spec.md §4.9
// enumerates.
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request_error"
	KindAuthentication      Kind = "authentication_error"
	KindPermission          Kind = "permission_error"
	KindNotFound            Kind = "not_found_error"
	KindRateLimit           Kind = "rate_limit_error"
	KindUpstreamThrottled   Kind = "upstream_throttled"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamServer      Kind = "upstream_server"
	KindInternal            Kind = "internal"
)

type mapping struct {
	status int
	typ    string
	code   string
}

var mappings = map[Kind]mapping{
	KindInvalidRequest:      {400, "invalid_request_error", "invalid_request"},
	KindAuthentication:      {401, "authentication_error", "invalid_api_key"},
	KindPermission:          {403, "permission_error", "permission_denied"},
	KindNotFound:            {404, "not_found_error", "model_not_found"},
	KindRateLimit:           {429, "rate_limit_error", "rate_limit_exceeded"},
	KindUpstreamThrottled:   {429, "rate_limit_error", "upstream_throttled"},
	KindUpstreamUnavailable: {503, "service_unavailable", "upstream_unavailable"},
	KindUpstreamServer:      {502, "server_error", "upstream_error"},
	KindInternal:            {500, "server_error", "internal_error"},
}

// Error is a canonical, typed failure that carries enough information
// for ErrorMapper to render an HTTP response without re-inspecting the
// stage that raised it.
type Error struct {
	Kind    Kind
	Message string
	Param   string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message, param string) *Error {
	return &Error{Kind: kind, Message: message, Param: param}
}

// Wrap constructs an *Error that carries an underlying cause, preserved
// for logging but never rendered to the client.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Body is the OpenAI-shaped error envelope: {"error": {...}}.
type Body struct {
	ErrorInfo ErrorInfo `json:"error"`
}

// ErrorInfo is the inner object of Body.
type ErrorInfo struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    string  `json:"code"`
}

// Render maps err to an HTTP status and an OpenAI-shaped error body. Any
// error not already an *Error is treated as KindInternal with its
// message suppressed from the client response.
func Render(err error) (status int, body Body) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = Wrap(KindInternal, "internal error", err)
	}
	m, ok := mappings[apiErr.Kind]
	if !ok {
		m = mappings[KindInternal]
	}
	message := apiErr.Message
	if apiErr.Kind == KindInternal && apiErr.cause != nil {
		message = "internal error"
	}
	var param *string
	if apiErr.Param != "" {
		p := apiErr.Param
		param = &p
	}
	return m.status, Body{ErrorInfo: ErrorInfo{
		Message: message,
		Type:    m.typ,
		Param:   param,
		Code:    m.code,
	}}
}
