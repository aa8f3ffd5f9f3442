package research

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindPlanning   ErrorKind = "planning"
	KindRetrieval  ErrorKind = "retrieval"
	KindReflection ErrorKind = "reflection"
	KindGeneration ErrorKind = "generation"
	KindUnknown    ErrorKind = "unknown"
)

var ErrSourceNotFound = errors.New("source not found")

// PlanningError is recovered inside QueryPlanner; callers only see it in logs.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("query planning failed: %v", e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

type ReflectionError struct {
	Err error
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("reflection failed: %v", e.Err)
}

func (e *ReflectionError) Unwrap() error { return e.Err }

// GenerationError is fatal when raised by the finalizer.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("text generation failed: %v", e.Err)
	}
	return fmt.Sprintf("text generation failed during %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func Kind(err error) ErrorKind {
	var (
		planning   *PlanningError
		retrieval  *RetrievalError
		reflection *ReflectionError
		generation *GenerationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &planning):
		return KindPlanning
	case errors.As(err, &retrieval):
		return KindRetrieval
	case errors.As(err, &reflection):
		return KindReflection
	case errors.As(err, &generation):
		return KindGeneration
	default:
		return KindUnknown
	}
}
