package validator

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
)

func header(name string, size int64) *multipart.FileHeader {
	return &multipart.FileHeader{Filename: name, Size: size}
}

func TestValidateBatch(t *testing.T) {
	v := NewBatchValidator(10)

	t.Run("accepts pdf batch", func(t *testing.T) {
		err := v.ValidateBatch([]*multipart.FileHeader{
			header("factura.pdf", 1024),
			header("FACTURA-2.PDF", 2048),
		})
		assert.NoError(t, err)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		assert.Error(t, v.ValidateBatch(nil))
	})

	t.Run("rejects non-pdf extension", func(t *testing.T) {
		err := v.ValidateBatch([]*multipart.FileHeader{header("notas.txt", 10)})
		assert.ErrorContains(t, err, "notas.txt")
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		err := v.ValidateBatch([]*multipart.FileHeader{header("grande.pdf", 11*1024*1024)})
		assert.ErrorContains(t, err, "grande.pdf")
	})

	t.Run("rejects empty file", func(t *testing.T) {
		err := v.ValidateBatch([]*multipart.FileHeader{header("vacia.pdf", 0)})
		assert.ErrorContains(t, err, "vacia.pdf")
	})

	t.Run("rejects too many files", func(t *testing.T) {
		files := make([]*multipart.FileHeader, 101)
		for i := range files {
			files[i] = header("f.pdf", 10)
		}
		assert.ErrorContains(t, v.ValidateBatch(files), "too many")
	})
}
