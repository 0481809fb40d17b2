// Package errs holds the error taxonomy shared by the catalog, admin and upload code.
package errs

import (
	"errors"
	"fmt"
)

// ConfigError reports a missing or invalid setting. It is fatal and never retried.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %v", e.Setting, e.Err)
	}
	return fmt.Sprintf("config %s: not set", e.Setting)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RetrievalError reports a failed listing, read or network call.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// NotFoundError reports that a requested show, key or upload does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Missing returns a ConfigError for an unset setting.
func Missing(setting string) error {
	return &ConfigError{Setting: setting}
}

// Retrieval wraps err as a RetrievalError. A nil err stays nil.
func Retrieval(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetrievalError{Op: op, Err: err}
}

// NotFound returns a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConfig reports whether err is or wraps a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsRetrieval reports whether err is or wraps a RetrievalError.
func IsRetrieval(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}
