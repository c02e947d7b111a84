package datagen

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cast"
)

// Error kinds. Every error returned by a Client method matches exactly one of these with errors.Is.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrValidation     = errors.New("invalid request")
	ErrServer         = errors.New("server error")
	ErrNetwork        = errors.New("network error")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, msg)
}

// Unwrap returns the error kind for the status code.
func (e *APIError) Unwrap() error {
	return kindForStatus(e.StatusCode)
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthentication
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrServer
	}
}

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetwork, e.Err}
}

// ValidationError is a request rejected before it was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type errorBody struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// serverMessage extracts a human readable message from an error response body.
// FastAPI style list details are flattened to their "msg" entries.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var eb errorBody
	if err := sonic.Unmarshal(body, &eb); err != nil {
		return strings.TrimSpace(string(body))
	}

	if eb.Detail != nil {
		if s, err := cast.ToStringE(eb.Detail); err == nil && s != "" {
			return s
		}
		if items, ok := eb.Detail.([]any); ok {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				m := cast.ToStringMap(item)
				if msg := cast.ToString(m["msg"]); msg != "" {
					msgs = append(msgs, msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if eb.Message != "" {
		return eb.Message
	}
	if eb.Error != "" {
		return eb.Error
	}
	return strings.TrimSpace(string(body))
}
