package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// Recognizer runs optical recognition over a rendered page image in a
// single language and reports the mean word confidence (0..100).
type Recognizer interface {
	Recognize(ctx context.Context, img []byte, lang string) (text string, confidence float64, err error)
}

type tesseractRecognizer struct {
	logger logger.Logger
}

// NewTesseractRecognizer returns the gosseract-backed Recognizer.
func NewTesseractRecognizer(log logger.Logger) Recognizer {
	return &tesseractRecognizer{logger: log}
}

func (r *tesseractRecognizer) Recognize(ctx context.Context, img []byte, lang string) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	// gosseract clients are not safe for reuse across goroutines, so each
	// recognition gets its own client.
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(lang); err != nil {
		return "", 0, fmt.Errorf("failed to set language %q: %w", lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", 0, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", 0, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get text: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		r.logger.Warn("failed to get bounding boxes", logger.Error(err))
		return text, 0, nil
	}

	var total float64
	for _, box := range boxes {
		total += box.Confidence
	}
	confidence := 0.0
	if len(boxes) > 0 {
		confidence = total / float64(len(boxes))
	}

	return text, confidence, nil
}

// renderPage rasterizes one page of the PDF at path into a cleaned-up PNG.
func (e *Extractor) renderPage(ctx context.Context, path string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "inv-ocr-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -f <page> -l <page> -png <in.pdf> <prefix>
	_, errb, err := e.runner.Run(ctx, e.cfg.PdftoppmPath,
		"-r", fmt.Sprintf("%d", e.cfg.DPI),
		"-f", fmt.Sprintf("%d", page),
		"-l", fmt.Sprintf("%d", page),
		"-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no image for page %d", page)
	}

	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, err
	}
	return cleanupImage(raw)
}

// cleanupImage applies a light preprocessing pass before recognition:
// grayscale, contrast normalization and a mild sharpen.
func cleanupImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}

	processed := imaging.Grayscale(img)
	processed = imaging.AdjustContrast(processed, 10)
	processed = imaging.Sharpen(processed, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		return nil, fmt.Errorf("failed to encode processed page: %w", err)
	}
	return buf.Bytes(), nil
}

// recognizePage runs recognition once per configured language and keeps the
// result with the highest mean word confidence.
func (e *Extractor) recognizePage(ctx context.Context, img []byte) (string, float64, error) {
	var bestText string
	bestConfidence := -1.0

	for _, lang := range e.cfg.Languages {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		text, confidence, err := e.recognizer.Recognize(ctx, img, lang)
		if err != nil {
			e.logger.Warn("recognition failed",
				logger.String("lang", lang),
				logger.Error(err),
			)
			continue
		}
		if confidence > bestConfidence {
			bestText = text
			bestConfidence = confidence
		}
	}

	if bestConfidence < 0 {
		return "", 0, fmt.Errorf("recognition failed for all configured languages")
	}
	return bestText, bestConfidence, nil
}
