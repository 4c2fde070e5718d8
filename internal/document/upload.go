package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxUploadSize is the largest accepted document, in bytes.
const MaxUploadSize = 10 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Upload is one uploaded document file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Validate rejects oversized files and unsupported media types before any
// storage or OCR work happens.
func (u Upload) Validate() error {
	if len(u.Data) == 0 {
		return fmt.Errorf("empty file")
	}
	if len(u.Data) > MaxUploadSize {
		return fmt.Errorf("file too large: maximum size is 10 MB")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(u.Filename))] {
		return fmt.Errorf("unsupported file type: only PDF or image files are allowed")
	}
	return nil
}

// IsPDF reports whether the upload carries a PDF extension.
func (u Upload) IsPDF() bool {
	return strings.ToLower(filepath.Ext(u.Filename)) == ".pdf"
}
