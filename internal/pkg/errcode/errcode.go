package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrInternal
	ErrIndexing
	ErrRetrieval
	ErrTemplateValidation
	ErrEmptyContext
	ErrGeneration
	ErrAIUnavailable
	ErrUploadFailed
	ErrTooMany
)
