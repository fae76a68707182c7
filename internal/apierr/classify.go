package apierr

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const maxMessageLength = 200

// FromResponse maps a non-2xx backend response into the closed taxonomy.
// The backend envelope is {code, message} with an optional {errors} object of
// per-field messages; anything unrecognized degrades to a server error with
// a truncated body excerpt.
func FromResponse(status int, body []byte) *Error {
	code := extractCode(body)
	message := extractMessage(body)

	switch {
	case status == http.StatusUnauthorized:
		return &Error{
			Kind:        KindSessionExpired,
			Message:     firstNonEmpty(message, "Session expired"),
			HTTPStatus:  status,
			BackendCode: code,
		}
	case status == http.StatusForbidden && IsLockoutCode(code):
		return &Error{
			Kind:        KindAccountLocked,
			Message:     firstNonEmpty(message, "Account locked"),
			HTTPStatus:  status,
			BackendCode: code,
		}
	case status == http.StatusForbidden:
		return &Error{
			Kind:        KindForbidden,
			Message:     firstNonEmpty(message, "Permission denied"),
			HTTPStatus:  status,
			BackendCode: code,
		}
	}

	if status >= 400 && status < 500 {
		if fields := extractFieldErrors(body); len(fields) > 0 {
			return &Error{
				Kind:        KindValidation,
				Message:     firstNonEmpty(message, "Validation failed"),
				HTTPStatus:  status,
				BackendCode: code,
				Details:     map[string]any{"fields": fields},
			}
		}
	}

	return &Error{
		Kind:        KindServer,
		Message:     firstNonEmpty(message, http.StatusText(status)),
		HTTPStatus:  status,
		BackendCode: code,
	}
}

// FromTransport maps a transport-level failure (no HTTP response) into the
// taxonomy. Deadline expiry is distinguished from other network failures so
// callers can tell "retry may help" from "the server said no".
func FromTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Message: "request deadline exceeded"}
	}

	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out: " + ue.Error()}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "i/o timeout"):
		return &Error{Kind: KindTimeout, Message: "request timed out: " + msg}
	case strings.Contains(msg, "connection refused"):
		return &Error{Kind: KindNetwork, Message: "connection refused: " + msg}
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "name resolution"):
		return &Error{Kind: KindNetwork, Message: "DNS resolution failed: " + msg}
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "EOF"):
		return &Error{Kind: KindNetwork, Message: "connection error: " + msg}
	case strings.Contains(msg, "certificate") || strings.Contains(msg, "tls"):
		return &Error{Kind: KindNetwork, Message: "TLS error: " + msg}
	default:
		return &Error{Kind: KindNetwork, Message: "network error: " + msg}
	}
}

func extractCode(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if v := gjson.GetBytes(body, "code"); v.Type == gjson.String {
		return v.String()
	}
	if v := gjson.GetBytes(body, "error.code"); v.Type == gjson.String {
		return v.String()
	}
	return ""
}

func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if v := gjson.GetBytes(body, "message"); v.Type == gjson.String && v.String() != "" {
		return v.String()
	}
	if v := gjson.GetBytes(body, "error.message"); v.Type == gjson.String && v.String() != "" {
		return v.String()
	}
	if !gjson.ValidBytes(body) {
		return truncate(string(body))
	}
	return ""
}

func extractFieldErrors(body []byte) map[string]string {
	v := gjson.GetBytes(body, "errors")
	if !v.IsObject() {
		return nil
	}
	fields := make(map[string]string)
	v.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			fields[key.String()] = value.String()
		} else if value.IsArray() && len(value.Array()) > 0 {
			fields[key.String()] = value.Array()[0].String()
		}
		return true
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxMessageLength {
		return s[:maxMessageLength] + "..."
	}
	return s
}

func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
