package invoice

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gestornet/invoice-extractor/internal/extract"
	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/internal/normalize"
	"github.com/gestornet/invoice-extractor/internal/rules"
	"github.com/gestornet/invoice-extractor/internal/template"
	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// ErrEmptyBatch rejects a batch request with no documents. It is the only
// batch-level failure; everything else is contained per document.
var ErrEmptyBatch = errors.New("batch contains no documents")

// Config for the batch orchestrator.
type Config struct {
	Workers         int           // bounded pool size, defaults to GOMAXPROCS
	DocumentTimeout time.Duration // per-document limit, defaults to 2 minutes
	// AdvisorLocales overrides the decimal-separator convention per
	// advisor; unlisted advisors use comma-decimal (es).
	AdvisorLocales map[string]normalize.Locale
}

// Service drives the extraction pipeline per document and aggregates a
// BatchResult. Documents are processed concurrently but results keep input
// order, and one failing document never affects its siblings.
type Service struct {
	extractor  extract.PageExtractor
	templates  *template.Store
	engine     *rules.Engine
	normalizer *normalize.Normalizer
	cfg        Config
	logger     logger.ContextLogger
}

func NewService(extractor extract.PageExtractor, templates *template.Store, cfg Config, log logger.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = 2 * time.Minute
	}

	return &Service{
		extractor:  extractor,
		templates:  templates,
		engine:     rules.NewEngine(log),
		normalizer: normalize.NewNormalizer(normalize.LocaleCommaDecimal, log),
		cfg:        cfg,
		logger:     logger.NewContextLogger(log),
	}
}

// ProcessBatch runs the pipeline for every document and returns one result
// per input, in input order.
func (s *Service) ProcessBatch(ctx context.Context, docs []models.Document, advisor string, forceOCR bool) (models.BatchResult, error) {
	if len(docs) == 0 {
		return models.BatchResult{}, ErrEmptyBatch
	}

	batchID := uuid.New().String()
	// Every log line below the batch boundary carries the batch id via the
	// context instead of repeating the field at each call site.
	ctx = context.WithValue(ctx, logger.ContextKeyBatchID, batchID)
	s.logger.FromContext(ctx).Info("processing batch",
		logger.Int("documents", len(docs)),
		logger.String("advisor", advisor),
		logger.Bool("forceOcr", forceOCR),
	)

	// Results are index-addressed so completion order never affects output
	// order. The pool is bounded by cores: recognition is CPU-bound and a
	// large upload must not fan out unbounded.
	results := make([]models.DocumentResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			results[i] = s.processDocument(gctx, doc, advisor, forceOCR)
			return nil
		})
	}
	// Workers never return errors; failures land in their result slot.
	_ = g.Wait()

	return models.BatchResult{
		BatchID:     batchID,
		Advisor:     advisor,
		ForceOCR:    forceOCR,
		Documents:   results,
		ProcessedAt: time.Now().UTC(),
	}, nil
}

// processDocument runs Extract -> Resolve -> Apply -> Normalize for one
// document. Every failure, panics included, is converted into a failed
// DocumentResult at this boundary.
func (s *Service) processDocument(ctx context.Context, doc models.Document, advisor string, forceOCR bool) (result models.DocumentResult) {
	result = models.DocumentResult{Filename: doc.Filename}
	log := s.logger.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing document",
				logger.String("filename", doc.Filename),
				logger.Any("panic", r),
				logger.Stack(),
			)
			result = models.DocumentResult{
				Filename: doc.Filename,
				Status:   models.StatusFailed,
				Error:    fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DocumentTimeout)
	defer cancel()

	doc.Advisor = advisor
	doc.ForceOCR = forceOCR

	pages, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		return result
	}

	tpl := s.templates.Resolve(advisor, doc.Filename)
	var tplRules []rules.FieldRule
	if tpl != nil {
		tplRules = tpl.Rules
		result.Template = tpl.ID
	}

	matches := s.engine.Apply(pages, tplRules)
	fields, missing := s.normalizer.Normalize(matches, s.localeFor(advisor))

	result.Fields = fields
	result.Missing = missing
	result.Status = statusOf(fields, missing)
	result.Confidence = confidence(fields, pages)

	log.Debug("document processed",
		logger.String("filename", doc.Filename),
		logger.String("status", string(result.Status)),
		logger.String("template", result.Template),
		logger.Int64("bytes", int64(len(doc.Content))),
		logger.Float64("confidence", result.Confidence),
	)

	return result
}

func (s *Service) localeFor(advisor string) normalize.Locale {
	return s.cfg.AdvisorLocales[advisor]
}

func statusOf(fields map[string]models.NormalizedField, missing []string) models.DocumentStatus {
	if len(missing) > 0 {
		return models.StatusPartial
	}
	for _, f := range fields {
		if f.Unrecognized {
			return models.StatusPartial
		}
	}
	return models.StatusOK
}

// confidence is the ratio of resolved schema fields, weighted by the mean
// page quality so recognized documents score below native ones.
func confidence(fields map[string]models.NormalizedField, pages []models.ExtractedPage) float64 {
	total := len(models.SchemaFields())
	if total == 0 || len(pages) == 0 {
		return 0
	}

	filled := 0
	for _, f := range fields {
		if !f.Unrecognized {
			filled++
		}
	}

	var quality float64
	for _, p := range pages {
		quality += p.Quality
	}
	quality /= float64(len(pages))

	return float64(filled) / float64(total) * quality
}
