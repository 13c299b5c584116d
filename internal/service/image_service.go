package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffasante/skincare-analysis-api/internal/domain"
	"github.com/jeffasante/skincare-analysis-api/internal/metrics"
	"github.com/jeffasante/skincare-analysis-api/internal/repository"
	"github.com/jeffasante/skincare-analysis-api/internal/validator"
)

// IDLength is the number of hex characters in an image identifier.
const IDLength = 16

const maxIDAttempts = 3

// ProbeExtensions is the fixed order in which Resolve looks for a stored image.
var ProbeExtensions = []string{".jpg", ".jpeg", ".png"}

type ImageService interface {
	AcceptUpload(ctx context.Context, candidate domain.UploadCandidate) (*domain.StoredImage, error)
	Resolve(ctx context.Context, id string) (string, error)
	Exists(ctx context.Context, id string) bool
	Open(ctx context.Context, id string) (io.ReadCloser, string, error)
	Validator() *validator.Validator
}

type imageService struct {
	store    repository.ObjectStore
	validate *validator.Validator
	observer metrics.Observer
	log      *zap.Logger
	newID    func() string
}

type ImageServiceOption func(*imageService)

// WithIDGenerator replaces the random identifier source.
func WithIDGenerator(gen func() string) ImageServiceOption {
	return func(s *imageService) { s.newID = gen }
}

func WithObserver(o metrics.Observer) ImageServiceOption {
	return func(s *imageService) {
		if o != nil {
			s.observer = o
		}
	}
}

func NewImageService(store repository.ObjectStore, v *validator.Validator, log *zap.Logger, opts ...ImageServiceOption) ImageService {
	s := &imageService{
		store:    store,
		validate: v,
		observer: metrics.Nop(),
		log:      log,
		newID:    NewImageID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewImageID returns 16 lowercase hex characters taken from a random UUID.
func NewImageID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
}

func (s *imageService) Validator() *validator.Validator {
	return s.validate
}

func (s *imageService) AcceptUpload(ctx context.Context, candidate domain.UploadCandidate) (*domain.StoredImage, error) {
	start := time.Now()
	image, err := s.acceptUpload(ctx, candidate)

	result := metrics.ResultAccepted
	switch {
	case err == nil:
	case domain.IsValidation(err):
		result = metrics.ResultRejected
	default:
		result = metrics.ResultError
	}
	s.observer.RecordUpload(time.Since(start), candidate.Size, result)

	return image, err
}

func (s *imageService) acceptUpload(ctx context.Context, candidate domain.UploadCandidate) (*domain.StoredImage, error) {
	if err := s.validate.CheckExtension(candidate.Filename); err != nil {
		return nil, err
	}
	if err := s.validate.CheckSize(candidate.Size); err != nil {
		return nil, err
	}

	content, err := readBounded(candidate.Body, s.validate.MaxSize())
	if err != nil {
		return nil, err
	}
	if err := s.validate.CheckSize(int64(len(content))); err != nil {
		return nil, err
	}

	id, err := s.freshID(ctx)
	if err != nil {
		return nil, err
	}
	ext := "." + validator.Extension(candidate.Filename)
	key := id + ext

	if err := s.store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), ""); err != nil {
		s.log.Error("Failed to save image",
			zap.String("image_id", id),
			zap.String("key", key),
			zap.Error(err))
		s.discard(ctx, key)
		return nil, &domain.ValidationError{
			Kind:    domain.KindStorage,
			Message: fmt.Sprintf("Error saving file: %v", err),
			Err:     err,
		}
	}

	mimeType, err := s.sniffStored(ctx, key)
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}

	image := &domain.StoredImage{
		ID:         id,
		Filename:   candidate.Filename,
		Extension:  ext,
		Key:        key,
		Size:       int64(len(content)),
		MimeType:   mimeType,
		UploadedAt: domain.Now(),
	}

	s.log.Info("Image uploaded successfully",
		zap.String("image_id", id),
		zap.String("filename", candidate.Filename),
		zap.String("mime_type", mimeType),
		zap.Int64("size", image.Size))

	return image, nil
}

// sniffStored reads the committed object back and checks its magic numbers.
func (s *imageService) sniffStored(ctx context.Context, key string) (string, error) {
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return "", &domain.ValidationError{
			Kind:    domain.KindContent,
			Message: fmt.Sprintf("Error validating file content: %v", err),
			Err:     err,
		}
	}
	defer rc.Close()

	return s.validate.CheckContentReader(rc)
}

// discard removes a rejected object. Failures are logged and swallowed so the
// validation error that triggered the rollback is the one the caller sees.
func (s *imageService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("Failed to remove rejected upload",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (s *imageService) freshID(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := s.newID()
		_, err := s.Resolve(ctx, id)
		if domain.IsNotFound(err) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
		s.log.Warn("Image identifier collision",
			zap.String("image_id", id),
			zap.Int("attempt", attempt))
	}
	return "", fmt.Errorf("could not allocate a unique image id after %d attempts", maxIDAttempts)
}

func (s *imageService) Resolve(ctx context.Context, id string) (string, error) {
	key, err := s.resolveKey(ctx, id)
	if err != nil {
		return "", err
	}
	return s.store.Locate(key), nil
}

func (s *imageService) resolveKey(ctx context.Context, id string) (string, error) {
	// Stored keys are flat names, so an id with a path separator never matches.
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", &domain.NotFoundError{ID: id}
	}
	for _, ext := range ProbeExtensions {
		key := id + ext
		ok, err := s.store.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", key, err)
		}
		if ok {
			return key, nil
		}
	}
	return "", &domain.NotFoundError{ID: id}
}

func (s *imageService) Exists(ctx context.Context, id string) bool {
	_, err := s.resolveKey(ctx, id)
	return err == nil
}

func (s *imageService) Open(ctx context.Context, id string) (io.ReadCloser, string, error) {
	key, err := s.resolveKey(ctx, id)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotExist) {
			return nil, "", &domain.NotFoundError{ID: id}
		}
		return nil, "", fmt.Errorf("open %s: %w", key, err)
	}
	return rc, key, nil
}

// readBounded reads at most limit+1 bytes so an understated declared size
// cannot push an oversize payload into the store.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	content, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return content, nil
}
