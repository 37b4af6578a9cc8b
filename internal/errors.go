package internal

import "fmt"

// StoreError represents errors accessing the local history store
type StoreError struct {
	Op  string // "open", "load", "save", "clear"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store error: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// StreamError represents errors on the assistant response stream
type StreamError struct {
	Stage string // "connect", "read", "event"
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error [%s]: %v", e.Stage, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// APIError represents a non-success response from the assistant backend
type APIError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error [%s]: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("api error [%s]: status %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
