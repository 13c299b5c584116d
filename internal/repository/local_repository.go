package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type LocalRepository struct {
	root string
	log  *zap.Logger
}

func NewLocalRepository(root string, log *zap.Logger) (*LocalRepository, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	return &LocalRepository{root: abs, log: log}, nil
}

func (r *LocalRepository) Root() string {
	return r.root
}

func (r *LocalRepository) Locate(key string) string {
	return filepath.Join(r.root, key)
}

// Put streams body into a temp file in the same directory and renames it onto
// the final path once it is synced, so readers never observe a partial file.
func (r *LocalRepository) Put(_ context.Context, key string, body io.Reader, size int64, _ string) error {
	dest, err := r.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				r.log.Warn("Failed to remove temp file",
					zap.String("path", tmpName),
					zap.Error(rmErr))
			}
		}
	}()

	written, err := io.Copy(tmp, body)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("short write: wrote %d of %d bytes", written, size)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to commit file: %w", err)
	}
	committed = true

	r.log.Debug("File stored",
		zap.String("key", key),
		zap.Int64("size", written))

	return nil
}

func (r *LocalRepository) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := r.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (r *LocalRepository) Exists(_ context.Context, key string) (bool, error) {
	p, err := r.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (r *LocalRepository) Delete(_ context.Context, key string) error {
	p, err := r.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// path maps a key onto a file directly under root. Keys are flat file names.
func (r *LocalRepository) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(r.root, key), nil
}
