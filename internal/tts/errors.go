package tts

import (
	"errors"
	"fmt"
)

// ErrorKind classifies synthesis failures. Transient errors are isolated to
// one chunk and the job moves on; Fatal errors abort everything that follows.
type ErrorKind int

const (
	Transient ErrorKind = iota
	Fatal
)

func (k ErrorKind) String() string {
	if k == Fatal {
		return "fatal"
	}
	return "transient"
}

// SynthError wraps an engine failure with its classification.
type SynthError struct {
	Kind   ErrorKind
	Engine string
	Err    error
}

func (e *SynthError) Error() string {
	return fmt.Sprintf("%s synthesis error (%s): %v", e.Kind, e.Engine, e.Err)
}

func (e *SynthError) Unwrap() error { return e.Err }

func transientErr(engine string, format string, args ...any) error {
	return &SynthError{Kind: Transient, Engine: engine, Err: fmt.Errorf(format, args...)}
}

func fatalErr(engine string, format string, args ...any) error {
	return &SynthError{Kind: Fatal, Engine: engine, Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err carries a Fatal classification. Unclassified
// errors count as fatal: an engine that fails in an unknown way should not
// be hammered for every remaining chunk.
func IsFatal(err error) bool {
	var se *SynthError
	if errors.As(err, &se) {
		return se.Kind == Fatal
	}
	return true
}

// IsTransient reports whether err is a retryable, single-chunk failure.
func IsTransient(err error) bool {
	var se *SynthError
	return errors.As(err, &se) && se.Kind == Transient
}
