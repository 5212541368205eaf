package milvus

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined errors
var (
	// ErrCollectionNotFound indicates that the collection does not exist
	ErrCollectionNotFound = errors.New("milvus: collection not found")

	// ErrInvalidArgument indicates that an argument is invalid
	ErrInvalidArgument = errors.New("milvus: invalid argument")

	// ErrInvalidConfig indicates that the configuration is invalid
	ErrInvalidConfig = errors.New("milvus: invalid config")

	// ErrConnectionFailed indicates that the connection to Milvus failed
	ErrConnectionFailed = errors.New("milvus: connection failed")

	// ErrOperationTimeout indicates that an operation timed out
	ErrOperationTimeout = errors.New("milvus: operation timeout")

	// ErrClientClosed indicates that the client is closed
	ErrClientClosed = errors.New("milvus: client is closed")
)

// Error represents a Milvus error with additional context
type Error struct {
	Op         string // Operation that failed
	Collection string // Collection name (if applicable)
	Field      string // Field name (if applicable)
	Err        error  // Original error
	Message    string // Additional message
}

// Error returns the error message
func (e *Error) Error() string {
	var msg string

	if e.Collection != "" && e.Field != "" {
		msg = fmt.Sprintf("milvus: %s failed for collection=%s, field=%s", e.Op, e.Collection, e.Field)
	} else if e.Collection != "" {
		msg = fmt.Sprintf("milvus: %s failed for collection=%s", e.Op, e.Collection)
	} else if e.Field != "" {
		msg = fmt.Sprintf("milvus: %s failed for field=%s", e.Op, e.Field)
	} else {
		msg = fmt.Sprintf("milvus: %s failed", e.Op)
	}

	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound checks if the error is a "not found" error
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCollectionNotFound) {
		return true
	}

	errMsg := err.Error()
	return containsAny(errMsg, []string{
		"not found",
		"not exist",
		"doesn't exist",
		"does not exist",
	})
}

// IsTimeout checks if the error is a timeout error
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrOperationTimeout) {
		return true
	}

	errMsg := err.Error()
	return containsAny(errMsg, []string{
		"timeout",
		"timed out",
		"deadline exceeded",
	})
}

// IsConnectionFailed checks if the error is a connection error
func IsConnectionFailed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrConnectionFailed) {
		return true
	}

	errMsg := err.Error()
	return containsAny(errMsg, []string{
		"connection",
		"connect",
		"dial",
		"network",
		"unreachable",
	})
}

// WrapError wraps an error with operation and collection context
func WrapError(op string, err error, collection, field string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Op:         op,
		Collection: collection,
		Field:      field,
		Err:        err,
	}
}

// WrapErrorWithMessage wraps an error with operation context and a message
func WrapErrorWithMessage(op string, err error, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Op:      op,
		Err:     err,
		Message: message,
	}
}

// containsAny checks if the string contains any of the substrings
func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
