package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffasante/skincare-analysis-api/internal/domain"
	"github.com/jeffasante/skincare-analysis-api/internal/fixtures"
)

func TestAnalyzeCommand(t *testing.T) {
	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "0123456789abcdef.png")
	require.NoError(t, os.WriteFile(path, fixtures.PNG(700, 700), 0o644))

	var out bytes.Buffer
	analyzeCmd.SetOut(&out)
	analyzeCmd.SetArgs(nil)
	require.NoError(t, analyzeCmd.RunE(analyzeCmd, []string{path}))

	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "0123456789abcdef", report.ImageID)
	assert.Equal(t, 0.75, report.Confidence)
	assert.Len(t, report.Issues, 3)
}

func TestAnalyzeCommandRejectsSpoofedImage(t *testing.T) {
	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "fake.jpg")
	require.NoError(t, os.WriteFile(path, fixtures.Text(), 0o644))

	err := analyzeCmd.RunE(analyzeCmd, []string{path})
	assert.True(t, domain.IsValidation(err))
}
