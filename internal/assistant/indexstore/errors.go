package indexstore

import "errors"

var (
	ErrEmptyInput       = errors.New("no documents or chunks to index")
	ErrNoIndex          = errors.New("operation requires an existing index")
	ErrDocumentTooShort = errors.New("document text is below the minimum chunk size")
	ErrCorruptStore     = errors.New("index and metadata are not aligned")
)
