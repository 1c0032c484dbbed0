package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// MessageUnreachable is the message of every transport error.
const MessageUnreachable = "could not reach server"

// StatusError is returned by Client for a non-2xx response.
type StatusError struct {
	Method   string
	URL      string
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Response.Status)
}

// Kind classifies a normalized error.
type Kind int

const (
	// KindTransport means no response was received.
	KindTransport Kind = iota
	// KindServer means the server answered with a non-2xx status.
	KindServer
	// KindAuthorization is a 401. It is also a server error.
	KindAuthorization
	// KindRequest is a local failure: the request could not be built or
	// its response could not be read.
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindAuthorization:
		return "authorization"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Error is the single error shape feature code handles.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Fields maps a request field to its validation messages.
	Fields map[string][]string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Status != 0 {
		fmt.Fprintf(&b, "%s (status %d)", e.Message, e.Status)
	} else {
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, strings.Join(e.Fields[k], ", "))
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsServer reports whether a response was received.
func (e *Error) IsServer() bool {
	return e.Kind == KindServer || e.Kind == KindAuthorization
}

// IsAuthorization reports whether this is a 401.
func (e *Error) IsAuthorization() bool {
	return e.Kind == KindAuthorization
}

// LogAttrs describes the error for structured logging.
func (e *Error) LogAttrs() []any {
	attrs := []any{"error", e.Message, "error_kind", e.Kind.String()}
	if e.Status != 0 {
		attrs = append(attrs, "status", e.Status)
	}
	if len(e.Fields) > 0 {
		attrs = append(attrs, "fields", e.Fields)
	}
	if e.Cause != nil {
		attrs = append(attrs, "cause", e.Cause.Error())
	}
	return attrs
}

// errorBody is the failure body the backend sends. Error is accepted as an
// alternative spelling of Message.
type errorBody struct {
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

// Normalize converts anything returned by Client into *Error. It returns nil
// for a nil error and passes an existing *Error through.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return fromResponse(statusErr.Response, err)
	}

	if isTransport(err) {
		return &Error{Kind: KindTransport, Message: MessageUnreachable, Cause: err}
	}
	return &Error{Kind: KindRequest, Message: err.Error(), Cause: err}
}

// isTransport reports whether err means no response arrived: what
// http.Client returns, network errors and cancellation.
func isTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func fromResponse(resp *Response, cause error) *Error {
	e := &Error{
		Kind:   KindServer,
		Status: resp.Status,
		Cause:  cause,
	}
	if resp.Status == http.StatusUnauthorized {
		e.Kind = KindAuthorization
	}

	var body errorBody
	if len(resp.Data) > 0 && json.Unmarshal(resp.Data, &body) == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
		e.Fields = decodeFields(body.Errors)
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("request failed with status %d", resp.Status)
	}
	return e
}

// decodeFields accepts both "field": "msg" and "field": ["msg", ...].
func decodeFields(raw map[string]json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	fields := make(map[string][]string, len(raw))
	for k, v := range raw {
		var one string
		if json.Unmarshal(v, &one) == nil {
			fields[k] = []string{one}
			continue
		}
		var many []string
		if json.Unmarshal(v, &many) == nil {
			fields[k] = many
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// IsAuthorization reports whether err normalizes to a 401.
func IsAuthorization(err error) bool {
	e := Normalize(err)
	return e != nil && e.IsAuthorization()
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
