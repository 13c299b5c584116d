package service

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/jeffasante/skincare-analysis-api/internal/domain"
	"github.com/jeffasante/skincare-analysis-api/internal/metrics"
	"github.com/jeffasante/skincare-analysis-api/pkg/utils"
)

var SkinTypes = [...]string{"Normal", "Oily", "Dry", "Combination", "Sensitive"}

var Issues = [...]string{
	"Hyperpigmentation",
	"Fine Lines",
	"Acne",
	"Dark Circles",
	"Redness",
	"Uneven Texture",
	"Large Pores",
	"Dryness",
}

var Recommendations = map[string]string{
	"Hyperpigmentation": "Use vitamin C serum for hyperpigmentation",
	"Fine Lines":        "Apply retinol for fine lines",
	"Acne":              "Consider salicylic acid for acne treatment",
	"Dark Circles":      "Use caffeine-based eye cream for dark circles",
	"Redness":           "Apply soothing niacinamide for redness",
	"Uneven Texture":    "Use AHA/BHA exfoliant for texture improvement",
	"Large Pores":       "Try niacinamide to minimize pore appearance",
	"Dryness":           "Apply hyaluronic acid serum for hydration",
}

const (
	fallbackSkinType   = "Combination"
	fallbackIssue      = "Hyperpigmentation"
	fallbackConfidence = 0.85
)

type AnalysisService interface {
	Analyze(path string) domain.AnalysisReport
	AnalyzeReader(id string, r io.Reader) domain.AnalysisReport
	AnalyzeImage(ctx context.Context, images ImageService, id string) (domain.AnalysisReport, error)
}

type dimensions struct {
	width, height int
}

type analysisService struct {
	proc     *utils.ImageProcessor
	cache    *lru.Cache[string, dimensions]
	observer metrics.Observer
	log      *zap.Logger
}

// NewAnalysisService builds the mock analysis engine. cacheSize bounds the
// per-identifier dimension cache; zero disables it.
func NewAnalysisService(log *zap.Logger, cacheSize int, observer metrics.Observer) AnalysisService {
	if observer == nil {
		observer = metrics.Nop()
	}
	s := &analysisService{
		proc:     utils.NewImageProcessor(log),
		observer: observer,
		log:      log,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, dimensions](cacheSize)
		if err != nil {
			log.Warn("Dimension cache disabled", zap.Error(err))
		} else {
			s.cache = cache
		}
	}
	return s
}

func (s *analysisService) Analyze(path string) domain.AnalysisReport {
	start := time.Now()
	id := stem(path)

	width, height, err := s.proc.Dimensions(path)
	return s.finish(start, id, width, height, err, false)
}

func (s *analysisService) AnalyzeReader(id string, r io.Reader) domain.AnalysisReport {
	start := time.Now()

	width, height, err := s.proc.DimensionsFrom(r)
	if err == nil {
		s.remember(id, width, height)
	}
	return s.finish(start, id, width, height, err, false)
}

// AnalyzeImage resolves id through images and analyzes the stored bytes.
// Only resolution failures are returned; unreadable images yield the
// fallback report.
func (s *analysisService) AnalyzeImage(ctx context.Context, images ImageService, id string) (domain.AnalysisReport, error) {
	start := time.Now()

	if s.cache != nil {
		if dims, ok := s.cache.Get(id); ok && images.Exists(ctx, id) {
			return s.finish(start, id, dims.width, dims.height, nil, true), nil
		}
	}

	rc, _, err := images.Open(ctx, id)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	defer rc.Close()

	return s.AnalyzeReader(id, rc), nil
}

func (s *analysisService) remember(id string, width, height int) {
	if s.cache != nil && id != "" {
		s.cache.Add(id, dimensions{width: width, height: height})
	}
}

func (s *analysisService) finish(start time.Time, id string, width, height int, err error, cached bool) domain.AnalysisReport {
	var report domain.AnalysisReport
	outcome := metrics.OutcomeAnalyzed
	if err != nil {
		s.log.Warn("Image unreadable, returning fallback analysis",
			zap.String("image_id", id),
			zap.Error(err))
		report = FallbackReport(id)
		outcome = metrics.OutcomeFallback
	} else {
		report = AnalyzeDimensions(id, width, height)
	}
	s.observer.RecordAnalysis(time.Since(start), outcome, cached)
	return report
}

// AnalyzeDimensions is the deterministic procedure. Every field except
// AnalyzedAt depends only on width+height.
func AnalyzeDimensions(id string, width, height int) domain.AnalysisReport {
	seed := width + height
	if seed < 0 {
		seed = -seed
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0))

	skinType := SkinTypes[rng.IntN(len(SkinTypes))]

	numIssues := 1 + seed%3
	issues := sample(rng, Issues[:], numIssues)
	sort.Strings(issues)

	recommendations := make([]string, len(issues))
	for i, issue := range issues {
		recommendations[i] = Recommendations[issue]
	}

	return domain.AnalysisReport{
		ImageID:         id,
		SkinType:        skinType,
		Issues:          issues,
		Confidence:      round2(0.75 + float64(seed%20)/100),
		Recommendations: recommendations,
		AnalyzedAt:      domain.Now(),
	}
}

func FallbackReport(id string) domain.AnalysisReport {
	return domain.AnalysisReport{
		ImageID:         id,
		SkinType:        fallbackSkinType,
		Issues:          []string{fallbackIssue},
		Confidence:      fallbackConfidence,
		Recommendations: []string{Recommendations[fallbackIssue]},
		AnalyzedAt:      domain.Now(),
	}
}

// sample draws k distinct elements with a partial Fisher-Yates shuffle over a
// copy of pool. It performs exactly k draws.
func sample(rng *rand.Rand, pool []string, k int) []string {
	items := append([]string(nil), pool...)
	if k > len(items) {
		k = len(items)
	}
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(items)-i)
		items[i], items[j] = items[j], items[i]
	}
	return items[:k]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
