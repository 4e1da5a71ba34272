package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

var (
	ErrAuth             = errors.New("authentication failed")
	ErrRateLimited      = errors.New("rate limited")
	ErrTransient        = errors.New("transient provider error")
	ErrUnknownModel     = errors.New("unknown model")
	ErrBadRequest       = errors.New("malformed request")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrNoCredentials    = errors.New("no API key found, set GEMINI_API_KEY or OPENAI_API_KEY")
)

// Kind groups provider failures by how the caller should react.
type Kind int

const (
	KindOther Kind = iota
	KindAuth
	KindRateLimit
	KindTransient
	KindUnknownModel
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindTransient:
		return "transient"
	case KindUnknownModel:
		return "unknown_model"
	case KindBadRequest:
		return "bad_request"
	default:
		return "other"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindRateLimit:
		return ErrRateLimited
	case KindTransient:
		return ErrTransient
	case KindUnknownModel:
		return ErrUnknownModel
	case KindBadRequest:
		return ErrBadRequest
	default:
		return nil
	}
}

// GatewayError is a classified provider failure. errors.Is matches both the
// kind's sentinel and the wrapped SDK error.
type GatewayError struct {
	Kind Kind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	if s := e.Kind.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return false
	}
	return gwErr.Kind == KindRateLimit || gwErr.Kind == KindTransient
}

// KindOf returns the classification of err, classifying it first if needed.
func KindOf(err error) Kind {
	var gwErr *GatewayError
	if errors.As(Classify(err), &gwErr) {
		return gwErr.Kind
	}
	return KindOther
}

var statusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`status code:?\s*(\d{3})`), // openai sdk
	regexp.MustCompile(`":\s*(\d{3})\s+[A-Z]`),    // anthropic sdk: POST "url": 429 Too Many Requests
	regexp.MustCompile(`Error\s+(\d{3}),`),        // genai: Error 429, Message: ...
}

// Classify wraps a provider error in a GatewayError. Nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return &GatewayError{Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return kindForStatus(apiErrPtr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	msg := err.Error()
	for _, re := range statusPatterns {
		if m := re.FindStringSubmatch(msg); len(m) == 2 {
			if code, convErr := strconv.Atoi(m[1]); convErr == nil {
				if k := kindForStatus(code); k != KindOther {
					return k
				}
			}
		}
	}
	return kindForMessage(strings.ToLower(msg))
}

func kindForStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 404:
		return KindUnknownModel
	case code == 429:
		return KindRateLimit
	case code == 408 || (code >= 500 && code < 600):
		return KindTransient
	case code == 400 || code == 422:
		return KindBadRequest
	default:
		return KindOther
	}
}

func kindForMessage(msg string) Kind {
	switch {
	case containsAny(msg, "rate limit", "rate_limit", "resource_exhausted", "quota"):
		return KindRateLimit
	case containsAny(msg, "api key", "api_key", "unauthorized", "unauthenticated", "permission denied", "authentication"):
		return KindAuth
	case containsAny(msg, "model not found", "model_not_found", "does not exist", "is not found for api version"):
		return KindUnknownModel
	case containsAny(msg, "timeout", "timed out", "connection refused", "connection reset", "unexpected eof",
		"temporarily unavailable", "overloaded", "service unavailable", "bad gateway"):
		return KindTransient
	default:
		return KindOther
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
