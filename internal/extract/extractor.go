package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// PageExtractor turns a PDF document into its ordered pages of text,
// deciding per page between embedded text and optical recognition.
type PageExtractor interface {
	Extract(ctx context.Context, doc models.Document) ([]models.ExtractedPage, error)
}

// Config for the extractor.
type Config struct {
	Languages     []string // recognition languages, tried per page, best confidence wins
	DPI           int      // rasterization resolution for recognition
	TextThreshold int      // embedded pages shorter than this (in runes) are re-derived via recognition
	PdftoppmPath  string
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		Languages:     []string{"spa", "glg", "eng"},
		DPI:           300,
		TextThreshold: 200,
		PdftoppmPath:  "pdftoppm",
	}
}

type Extractor struct {
	cfg        Config
	runner     Runner
	recognizer Recognizer
	logger     logger.Logger
}

// NewExtractor creates a PageExtractor. Zero-valued config fields fall back
// to defaults.
func NewExtractor(cfg Config, runner Runner, recognizer Recognizer, log logger.Logger) *Extractor {
	def := DefaultConfig()
	if len(cfg.Languages) == 0 {
		cfg.Languages = def.Languages
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if cfg.TextThreshold <= 0 {
		cfg.TextThreshold = def.TextThreshold
	}
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = def.PdftoppmPath
	}

	return &Extractor{
		cfg:        cfg,
		runner:     runner,
		recognizer: recognizer,
		logger:     log,
	}
}

// Extract reads every page of the document. When doc.ForceOCR is set every
// page goes through recognition; otherwise recognition only runs for pages
// whose embedded text is missing or too short to trust.
func (e *Extractor) Extract(ctx context.Context, doc models.Document) ([]models.ExtractedPage, error) {
	reader := bytes.NewReader(doc.Content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, &ExtractionError{Kind: KindCorrupt, Filename: doc.Filename, Err: err}
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return nil, &ExtractionError{Kind: KindCorrupt, Filename: doc.Filename, Err: errors.New("document has no pages")}
	}

	// The rasterizer needs the document on disk; created lazily so fully
	// native documents never touch the filesystem.
	var tmpPath string
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	pages := make([]models.ExtractedPage, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, e.wrapCtxErr(doc.Filename, err)
		}

		var embedded string
		if !doc.ForceOCR {
			page := pdfReader.Page(i)
			if !page.V.IsNull() {
				text, err := page.GetPlainText(nil)
				if err != nil {
					// A broken content stream on one page is not fatal,
					// that page falls through to recognition.
					e.logger.Warn("embedded text extraction failed",
						logger.String("filename", doc.Filename),
						logger.Int("page", i),
						logger.Error(err),
					)
				} else {
					embedded = text
				}
			}
		}

		if !doc.ForceOCR && utf8.RuneCountInString(strings.TrimSpace(embedded)) >= e.cfg.TextThreshold {
			pages = append(pages, models.ExtractedPage{
				Number:  i,
				Text:    embedded,
				Source:  models.SourceEmbedded,
				Quality: 1.0,
			})
			continue
		}

		if tmpPath == "" {
			tmpPath, err = writeTemp(doc.Content)
			if err != nil {
				return nil, &ExtractionError{Kind: KindOCR, Filename: doc.Filename, Err: err}
			}
		}

		img, err := e.renderPage(ctx, tmpPath, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, e.wrapCtxErr(doc.Filename, ctxErr)
			}
			return nil, &ExtractionError{Kind: KindOCR, Filename: doc.Filename, Err: err}
		}

		text, confidence, err := e.recognizePage(ctx, img)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, e.wrapCtxErr(doc.Filename, ctxErr)
			}
			return nil, &ExtractionError{Kind: KindOCR, Filename: doc.Filename, Err: err}
		}

		pages = append(pages, models.ExtractedPage{
			Number:  i,
			Text:    text,
			Source:  models.SourceRecognized,
			Quality: confidence / 100,
		})
	}

	return pages, nil
}

func (e *Extractor) wrapCtxErr(filename string, err error) error {
	kind := KindTimeout
	if !errors.Is(err, context.DeadlineExceeded) {
		kind = KindOCR
	}
	return &ExtractionError{Kind: kind, Filename: filename, Err: err}
}

func writeTemp(content []byte) (string, error) {
	f, err := os.CreateTemp("", "inv-doc-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
