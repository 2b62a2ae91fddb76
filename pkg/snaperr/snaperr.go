// Package snaperr defines the error taxonomy shared across snapbase's core
// packages. Errors carry enough structured context to be inspected with
// errors.As while still rendering a useful message through Error().
package snaperr

import (
	"fmt"
	"strings"
)

// Kind classifies an error the way callers are expected to branch on it.
type Kind string

const (
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindAlreadyExists  Kind = "already_exists"
	KindStorage        Kind = "storage_error"
	KindEngine         Kind = "engine_error"
	KindConfig         Kind = "config_error"
	KindChainViolation Kind = "chain_violation"
	KindConnectFailure Kind = "connect_failure"
)

// InvalidInputError reports a malformed caller-supplied path, name, or flag.
type InvalidInputError struct {
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Value, e.Reason)
}

func InvalidInput(value, reason string) error {
	return &InvalidInputError{Value: value, Reason: reason}
}

// NotFoundError reports a missing workspace, snapshot, source, or file.
type NotFoundError struct {
	Kind string // "snapshot", "source", "workspace", "file", ...
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func NotFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// AlreadyExistsError reports a duplicate (source, name) on create.
type AlreadyExistsError struct {
	Source string
	Name   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("snapshot already exists for source %q: %s", e.Source, e.Name)
}

func AlreadyExists(source, name string) error {
	return &AlreadyExistsError{Source: source, Name: name}
}

// StorageError reports a backend I/O failure.
type StorageError struct {
	Backend   string // "local" or "s3"
	Operation string
	Path      string
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: backend=%s op=%s path=%s: %v", e.Backend, e.Operation, e.Path, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

func Storage(backend, operation, path string, cause error) error {
	return &StorageError{Backend: backend, Operation: operation, Path: path, Cause: cause}
}

// ConnectFailureError is a distinguished StorageError raised when a backend
// fails its startup connectivity check (the S3 backend's HEAD-bucket probe).
type ConnectFailureError struct {
	Backend   string
	Path      string
	Cause     error
	Guidance  string
}

func (e *ConnectFailureError) Error() string {
	return fmt.Sprintf("failed to connect to %s backend at %s: %v (%s)", e.Backend, e.Path, e.Cause, e.Guidance)
}

func (e *ConnectFailureError) Unwrap() error { return e.Cause }

func ConnectFailure(backend, path string, cause error, guidance string) error {
	return &ConnectFailureError{Backend: backend, Path: path, Cause: cause, Guidance: guidance}
}

// EngineSubKind classifies a columnar-engine failure by pattern-matching its
// message. Classification is best-effort; the original message is always
// preserved alongside it.
type EngineSubKind string

const (
	EngineSubKindMalformedCSV     EngineSubKind = "malformed_csv"
	EngineSubKindEncoding         EngineSubKind = "encoding"
	EngineSubKindJSONParse        EngineSubKind = "json_parse"
	EngineSubKindPermissionDenied EngineSubKind = "permission_denied"
	EngineSubKindFileNotFound     EngineSubKind = "file_not_found"
	EngineSubKindUnknown          EngineSubKind = "unknown"
)

// EngineError reports a failure surfaced by the embedded columnar engine.
type EngineError struct {
	Message string
	SubKind EngineSubKind
	Cause   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error (%s): %s", e.SubKind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// Engine classifies cause by substring-matching its message against the
// known patterns documented in spec §9 ("Error classification"). This is
// fragile by nature; the raw message is always preserved in Message.
func Engine(cause error) error {
	msg := cause.Error()
	return &EngineError{
		Message: msg,
		SubKind: classifyEngineMessage(msg),
		Cause:   cause,
	}
}

func classifyEngineMessage(msg string) EngineSubKind {
	switch {
	case containsAny(msg, "CSV Error", "Unterminated quoted field", "malformed CSV"):
		return EngineSubKindMalformedCSV
	case containsAny(msg, "Invalid Input Error: Unable to transcode", "invalid encoding"):
		return EngineSubKindEncoding
	case containsAny(msg, "Invalid Input Error: JSON", "malformed JSON"):
		return EngineSubKindJSONParse
	case containsAny(msg, "Permission denied", "permission denied"):
		return EngineSubKindPermissionDenied
	case containsAny(msg, "No files found", "file or directory", "does not exist"):
		return EngineSubKindFileNotFound
	default:
		return EngineSubKindUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ConfigError reports a config parse or resolution failure.
type ConfigError struct {
	Path  string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func Config(path string, cause error) error {
	return &ConfigError{Path: path, Cause: cause}
}

// ChainViolationError reports an attempted parent/child relationship across
// different canonical source paths.
type ChainViolationError struct {
	ParentSourcePath string
	ChildSourcePath  string
}

func (e *ChainViolationError) Error() string {
	return fmt.Sprintf("chain violation: parent source %q does not match child source %q", e.ParentSourcePath, e.ChildSourcePath)
}

func ChainViolation(parentSourcePath, childSourcePath string) error {
	return &ChainViolationError{ParentSourcePath: parentSourcePath, ChildSourcePath: childSourcePath}
}
