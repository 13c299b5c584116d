package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeffasante/skincare-analysis-api/internal/fixtures"
)

func TestDimensions(t *testing.T) {
	p := NewImageProcessor(zap.NewNop())
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(pngPath, fixtures.PNG(30, 20), 0o644))
	w, h, err := p.Dimensions(pngPath)
	require.NoError(t, err)
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)

	w, h, err = p.DimensionsFrom(bytes.NewReader(fixtures.JPEG(17, 5)))
	require.NoError(t, err)
	assert.Equal(t, 17, w)
	assert.Equal(t, 5, h)
}

func TestDimensionsErrors(t *testing.T) {
	p := NewImageProcessor(zap.NewNop())

	_, _, err := p.Dimensions(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, _, err = p.DimensionsFrom(bytes.NewReader(fixtures.Text()))
	assert.Error(t, err)
}
