package domain

import (
	"io"
	"time"
)

// UploadCandidate is the raw upload handed over by the transport layer after
// the request body has been read in full.
type UploadCandidate struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type StoredImage struct {
	ID         string    `json:"image_id"`
	Filename   string    `json:"filename"`
	Extension  string    `json:"-"`
	Key        string    `json:"-"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"-"`
	UploadedAt Timestamp `json:"uploaded_at"`
}

type AnalysisReport struct {
	ImageID         string    `json:"image_id"`
	SkinType        string    `json:"skin_type"`
	Issues          []string  `json:"issues"`
	Confidence      float64   `json:"confidence"`
	Recommendations []string  `json:"recommendations"`
	AnalyzedAt      Timestamp `json:"analyzed_at"`
}

// Timestamp marshals as ISO-8601 UTC with a literal trailing Z.
type Timestamp time.Time

const timestampLayout = "2006-01-02T15:04:05.000000Z"

func Now() Timestamp {
	return Timestamp(time.Now().UTC())
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(timestampLayout)
}

func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed.UTC())
	return nil
}
