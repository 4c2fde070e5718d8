package document

import "fmt"

// ExtractionError is fatal to an ingestion call: storage or OCR backends
// unavailable, or the source file cannot be decoded. It is distinguishable
// from generic failures so callers can surface a retryable "document
// processing unavailable" condition.
type ExtractionError struct {
	Stage string // "storage", "ocr", "input"
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("document extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
