package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNotConfigured means no completion backend is set up (no API key).
var ErrNotConfigured = errors.New("ai: no completion provider configured")

// FailureKind classifies why a completion call failed.
type FailureKind int

const (
	Unknown FailureKind = iota
	QuotaExceeded
	AuthInvalid
	Unavailable
)

func (k FailureKind) String() string {
	switch k {
	case QuotaExceeded:
		return "quota_exceeded"
	case AuthInvalid:
		return "auth_invalid"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ProviderError is returned by providers that know the HTTP outcome of a call.
// A Kind other than Unknown takes precedence over status based classification.
type ProviderError struct {
	Kind    FailureKind
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
}

// Attempt is one failed candidate call.
type Attempt struct {
	Model string
	Kind  FailureKind
	Err   error
}

// DispatchError is returned when every candidate failed.
type DispatchError struct {
	Kind     FailureKind
	Attempts []Attempt
}

func (e *DispatchError) Error() string {
	if len(e.Attempts) == 0 {
		return "ai: no candidates to try"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s: %v)", a.Model, a.Kind, a.Err))
	}
	return fmt.Sprintf("ai: all candidates failed [%s]: %s", e.Kind, strings.Join(parts, " | "))
}

// Classify maps any completion error to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return Unknown
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Kind != Unknown {
			return pe.Kind
		}
		if pe.Status != 0 {
			return classifyProvider(pe)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Unavailable
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case mentionsQuota(msg):
		return QuotaExceeded
	case strings.Contains(lower, "api key"), strings.Contains(msg, "UNAUTHENTICATED"), strings.Contains(msg, "PERMISSION_DENIED"):
		return AuthInvalid
	case strings.Contains(msg, "UNAVAILABLE"), strings.Contains(lower, "overloaded"):
		return Unavailable
	}
	return Unknown
}

// classifyProvider trusts the status and code of an HTTP outcome. Message text
// only counts when it names the quota explicitly.
func classifyProvider(pe *ProviderError) FailureKind {
	if k := classifyStatus(pe.Status, pe.Code); k != Unknown {
		return k
	}
	if mentionsQuota(pe.Message) {
		return QuotaExceeded
	}
	return Unknown
}

func mentionsQuota(msg string) bool {
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(strings.ToLower(msg), "quota")
}

func classifyStatus(status int, code string) FailureKind {
	switch {
	case status == http.StatusTooManyRequests, code == "RESOURCE_EXHAUSTED":
		return QuotaExceeded
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		code == "UNAUTHENTICATED", code == "PERMISSION_DENIED":
		return AuthInvalid
	case status >= 500, code == "UNAVAILABLE", code == "DEADLINE_EXCEEDED":
		return Unavailable
	}
	return Unknown
}
