package errors

import "errors"

// Pipeline errors. Provider failures are always translated into one of
// these before leaving the rag package; raw provider errors never cross
// the service boundary.
var (
	ErrIndexing           = errors.New("indexing failed")
	ErrRetrieval          = errors.New("retrieval failed")
	ErrTemplateValidation = errors.New("template validation failed")
	ErrEmptyContext       = errors.New("no grounding material")
	ErrGeneration         = errors.New("generation failed")
)

// CRUD errors.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
	ErrInternal = errors.New("internal")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsEmptyContext(err error) bool {
	return errors.Is(err, ErrEmptyContext)
}
