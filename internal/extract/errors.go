package extract

import (
	"errors"
	"fmt"
)

// ErrorKind classifies document-level extraction failures.
type ErrorKind string

const (
	KindCorrupt ErrorKind = "corrupt"
	KindTimeout ErrorKind = "timeout"
	KindOCR     ErrorKind = "ocr"
)

// ExtractionError is the only error the extractor returns. A Corrupt kind
// means the PDF could not be opened at all and the document cannot be
// processed further.
type ExtractionError struct {
	Kind     ErrorKind
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s) for %s: %v", e.Kind, e.Filename, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s) for %s", e.Kind, e.Filename)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err is a corrupt-document extraction error.
func IsCorrupt(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == KindCorrupt
}

// IsTimeout reports whether err is a recognition timeout.
func IsTimeout(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == KindTimeout
}
