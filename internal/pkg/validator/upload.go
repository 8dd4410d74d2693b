package validator

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/extractor"
)

var AllowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".docx": true,
}

// Validator checks uploads against the extension allow-list and size ceiling.
type Validator struct {
	cfg config.FileUploadConfig
}

func NewFileValidator(cfg config.FileUploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateUpload checks one uploaded file and returns the MIME type its
// extension maps to.
func (v *Validator) ValidateUpload(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", fmt.Errorf("%w: file", entity.ErrMissingField)
	}
	return v.ValidateFile(fh.Filename, fh.Size)
}

func (v *Validator) ValidateFile(filename string, size int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q (allowed: txt, md, pdf, docx)", entity.ErrInvalidExtension, ext)
	}

	if size <= 0 {
		return "", fmt.Errorf("%w: file '%s' is empty", entity.ErrInvalidFile, filename)
	}
	if size > v.cfg.MaxFileSize {
		return "", fmt.Errorf("%w: file '%s' is %d bytes (max %d)", entity.ErrFileTooLarge, filename, size, v.cfg.MaxFileSize)
	}

	mimeType, _ := extractor.MimeTypeFromFilename(filename)
	return mimeType, nil
}

// SanitizeFilename sanitizes a filename for safe storage
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	replacer := strings.NewReplacer(
		" ", "_",
		"(", "",
		")", "",
		"[", "",
		"]", "",
		"{", "",
		"}", "",
		"\x00", "",
	)
	return replacer.Replace(filename)
}
