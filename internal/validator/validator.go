// Package validator holds the upload acceptance policy: declared extension,
// declared size, sniffed content type and identifier shape. It never touches
// storage itself.
package validator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jeffasante/skincare-analysis-api/internal/domain"
)

const (
	DefaultMaxUploadSize = 5 * 1024 * 1024
	MinIdentifierLength  = 8
)

var (
	DefaultExtensions = []string{"jpg", "jpeg", "png"}
	DefaultMimeTypes  = []string{"image/jpeg", "image/png"}
)

type Validator struct {
	maxSize    int64
	extensions []string
	extSet     map[string]struct{}
	mimeTypes  []string
	mimeSet    map[string]struct{}
}

// New builds a Validator. Zero or empty arguments fall back to the defaults.
func New(maxSize int64, extensions, mimeTypes []string) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if len(mimeTypes) == 0 {
		mimeTypes = DefaultMimeTypes
	}

	v := &Validator{
		maxSize: maxSize,
		extSet:  make(map[string]struct{}, len(extensions)),
		mimeSet: make(map[string]struct{}, len(mimeTypes)),
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if _, dup := v.extSet[ext]; dup {
			continue
		}
		v.extSet[ext] = struct{}{}
		v.extensions = append(v.extensions, ext)
	}
	for _, mt := range mimeTypes {
		mt = strings.ToLower(mt)
		if _, dup := v.mimeSet[mt]; dup {
			continue
		}
		v.mimeSet[mt] = struct{}{}
		v.mimeTypes = append(v.mimeTypes, mt)
	}
	return v
}

func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Extension returns the lower-cased suffix of filename without the leading
// dot. Dotfiles such as ".png" have no suffix.
func Extension(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(base)
	if ext == base {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func (v *Validator) CheckExtension(filename string) error {
	ext := Extension(filename)
	if _, ok := v.extSet[ext]; !ok || ext == "" {
		return domain.NewValidationError(domain.KindExtension,
			"Invalid file type. Allowed types: %s", strings.Join(v.extensions, ", "))
	}
	return nil
}

func (v *Validator) CheckSize(size int64) error {
	if size > v.maxSize {
		maxMB := float64(v.maxSize) / (1024 * 1024)
		return domain.NewValidationError(domain.KindSize,
			"File too large. Maximum size: %.1fMB", maxMB)
	}
	return nil
}

// CheckContent sniffs the file at path by its magic numbers and returns the
// detected MIME type when it is allowed.
func (v *Validator) CheckContent(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", v.sniffError(err)
	}
	defer f.Close()

	return v.CheckContentReader(f)
}

func (v *Validator) CheckContentReader(r io.Reader) (string, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", v.sniffError(err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if _, ok := v.mimeSet[strings.ToLower(m.String())]; ok {
			return m.String(), nil
		}
	}
	return "", domain.NewValidationError(domain.KindContent,
		"Invalid file content. File must be a valid image (%s)", v.describeMimeTypes())
}

func (v *Validator) CheckIdentifierFormat(id string) error {
	if utf8.RuneCountInString(id) < MinIdentifierLength {
		return domain.NewValidationError(domain.KindIdentifier, "Invalid image_id format")
	}
	return nil
}

func (v *Validator) sniffError(err error) error {
	return &domain.ValidationError{
		Kind:    domain.KindContent,
		Message: fmt.Sprintf("Error validating file content: %v", err),
		Err:     err,
	}
}

// describeMimeTypes renders the allowed set as e.g. "JPEG or PNG".
func (v *Validator) describeMimeTypes() string {
	names := make([]string, 0, len(v.mimeTypes))
	for _, mt := range v.mimeTypes {
		if i := strings.IndexByte(mt, '/'); i >= 0 {
			mt = mt[i+1:]
		}
		names = append(names, strings.ToUpper(mt))
	}
	return strings.Join(names, " or ")
}
