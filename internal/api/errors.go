package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Backend error codes surfaced in structured error payloads.
const (
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInvalidAddress         = "INVALID_ADDRESS"
	CodeCancellationNotAllowed = "CANCELLATION_NOT_ALLOWED"
)

// Error is a non-2xx backend response. Message carries the backend text
// verbatim where one was provided so it can be shown to the user unchanged.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the backend-provided text, or a terse fallback when the
// body was unparsable.
func (e *Error) UserMessage() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// IsAuthExpired reports a 401, which forces re-login for mandatory-auth flows.
func IsAuthExpired(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsNotFound reports a 404 on a resource lookup.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// HasCode reports whether err is a backend error carrying the given errorCode.
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type errorPayload struct {
	Code    string `json:"errorCode"`
	Message string `json:"message"`
	Detail  string `json:"error"`
}

// decodeError maps a non-2xx response to *Error. Unparsable bodies still yield
// a typed error with the raw text truncated.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	e := &Error{Status: resp.StatusCode}
	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err == nil {
		e.Code = payload.Code
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = payload.Detail
		}
		// some endpoints wrap a JSON error object inside the "error" string
		if strings.HasPrefix(strings.TrimSpace(e.Message), "{") {
			var inner errorPayload
			if json.Unmarshal([]byte(e.Message), &inner) == nil && inner.Detail != "" {
				e.Message = inner.Detail
			}
		}
		return e
	}
	e.Message = strings.TrimSpace(string(raw))
	return e
}
