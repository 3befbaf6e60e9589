// internal/utils/validator/document.go
package validator

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// BatchValidator checks an uploaded batch before any per-document work
// begins. An invalid batch is the only batch-level rejection; individual
// document problems are handled later, inside the pipeline.
type BatchValidator struct {
	MaxFileSize int64 // bytes
	MaxFiles    int
}

// NewBatchValidator with the given upload cap in megabytes.
func NewBatchValidator(maxFileSizeMB int) *BatchValidator {
	return &BatchValidator{
		MaxFileSize: int64(maxFileSizeMB) * 1024 * 1024,
		MaxFiles:    100,
	}
}

// ValidateBatch checks file count, extensions and sizes.
func (v *BatchValidator) ValidateBatch(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return fmt.Errorf("no documents supplied")
	}
	if v.MaxFiles > 0 && len(files) > v.MaxFiles {
		return fmt.Errorf("too many documents: %d (max %d)", len(files), v.MaxFiles)
	}

	for _, f := range files {
		if ext := strings.ToLower(filepath.Ext(f.Filename)); ext != ".pdf" {
			return fmt.Errorf("unsupported file type %q for %s, only PDF is accepted", ext, f.Filename)
		}
		if v.MaxFileSize > 0 && f.Size > v.MaxFileSize {
			return fmt.Errorf("file %s exceeds the size limit (%d bytes)", f.Filename, v.MaxFileSize)
		}
		if f.Size == 0 {
			return fmt.Errorf("file %s is empty", f.Filename)
		}
	}

	return nil
}
