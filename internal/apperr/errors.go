// Package apperr defines the error categories shared by indexing, retrieval, and chat.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration indicates invalid settings (chunk size/overlap, dimension, limits).
	// Never corrected silently.
	ErrConfiguration = errors.New("configuration error")

	// ErrService indicates an embedding or model provider was unreachable,
	// rate-limited, or returned malformed output.
	ErrService = errors.New("service error")

	// ErrIndexCorruption indicates the persisted vector and metadata artifacts disagree.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrEmptyIndex indicates a search against an index with no entries.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrToolInvocation indicates a malformed tool call from the agent.
	ErrToolInvocation = errors.New("tool invocation error")

	// ErrIndexNotLoaded indicates no index is currently attached to the query path.
	ErrIndexNotLoaded = errors.New("index not loaded")
)

// Configf returns an error that matches ErrConfiguration.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ServiceError describes a failed call to an external provider.
type ServiceError struct {
	Provider   string
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is reports ErrService so callers can match the category with errors.Is.
func (e *ServiceError) Is(target error) bool { return target == ErrService }

// CorruptionError describes why a persisted index was rejected at load time.
type CorruptionError struct {
	Path   string
	Reason string
}

func (e *CorruptionError) Error() string {
	if e.Path == "" {
		return "index corruption: " + e.Reason
	}
	return fmt.Sprintf("index corruption in %s: %s", e.Path, e.Reason)
}

func (e *CorruptionError) Is(target error) bool { return target == ErrIndexCorruption }

// Corruptf returns a CorruptionError for path.
func Corruptf(path, format string, args ...any) error {
	return &CorruptionError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ToolError describes a tool call the agent got wrong.
type ToolError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) Is(target error) bool { return target == ErrToolInvocation }

// IsRetryable reports whether err is a ServiceError marked retryable.
func IsRetryable(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Retryable
}

// BodyMessage extracts a provider error message from an HTTP error body
// ({"error":{"message":...}} or {"detail":...}), falling back to the raw text.
func BodyMessage(payload []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(payload, &parsed) == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	msg := strings.TrimSpace(string(payload))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}
