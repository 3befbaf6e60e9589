package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// buildPDF assembles a minimal single-font PDF with one uncompressed text
// stream per page, so embedded extraction has real content to read.
func buildPDF(t *testing.T, pageTexts ...string) []byte {
	t.Helper()

	n := len(pageTexts)
	kids := make([]string, n)
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	for i, text := range pageTexts {
		contentID := 5 + 2*i
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentID))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, body := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xrefOff)
	return buf.Bytes()
}

// stubRunner plays pdftoppm: it drops a tiny PNG at the requested prefix and
// records the page arguments it was called with.
type stubRunner struct {
	pages []string
	fail  bool
}

func (r *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	if r.fail {
		return nil, []byte("boom"), fmt.Errorf("exit status 1")
	}
	var page string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-f" {
			page = args[i+1]
		}
	}
	r.pages = append(r.pages, page)

	prefix := args[len(args)-1]
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(prefix+"-"+page+".png", buf.Bytes(), 0o644); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

type stubResult struct {
	text       string
	confidence float64
	err        error
}

type stubRecognizer struct {
	byLang map[string]stubResult
	langs  []string
}

func (r *stubRecognizer) Recognize(_ context.Context, _ []byte, lang string) (string, float64, error) {
	r.langs = append(r.langs, lang)
	res, ok := r.byLang[lang]
	if !ok {
		return "", 0, fmt.Errorf("no model for %q", lang)
	}
	return res.text, res.confidence, res.err
}

func newTestExtractor(cfg Config, runner Runner, rec Recognizer) *Extractor {
	return NewExtractor(cfg, runner, rec, logger.NewTestLogger())
}

func TestExtract_CorruptDocument(t *testing.T) {
	e := newTestExtractor(Config{}, &stubRunner{}, &stubRecognizer{})

	_, err := e.Extract(context.Background(), models.Document{
		Filename: "broken.pdf",
		Content:  []byte("this is not a pdf"),
	})
	require.Error(t, err)
	assert.True(t, IsCorrupt(err))
	assert.False(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestExtract_EmbeddedText(t *testing.T) {
	longText := strings.Repeat("Factura de prueba numero 42 ", 10)
	content := buildPDF(t, longText)

	runner := &stubRunner{}
	e := newTestExtractor(Config{TextThreshold: 50}, runner, &stubRecognizer{})

	pages, err := e.Extract(context.Background(), models.Document{Filename: "a.pdf", Content: content})
	require.NoError(t, err)
	require.Len(t, pages, 1)

	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, models.SourceEmbedded, pages[0].Source)
	assert.Equal(t, 1.0, pages[0].Quality)
	assert.Contains(t, pages[0].Text, "Factura de prueba numero 42")
	assert.Empty(t, runner.pages, "native pages must not be rasterized")
}

func TestExtract_ShortPageFallsBackToRecognition(t *testing.T) {
	longText := strings.Repeat("texto nativo suficiente ", 10)
	content := buildPDF(t, longText, "corto")

	runner := &stubRunner{}
	rec := &stubRecognizer{byLang: map[string]stubResult{
		"spa": {text: "texto reconocido", confidence: 84},
	}}
	e := newTestExtractor(Config{TextThreshold: 50, Languages: []string{"spa"}}, runner, rec)

	pages, err := e.Extract(context.Background(), models.Document{Filename: "mixed.pdf", Content: content})
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, models.SourceEmbedded, pages[0].Source)
	assert.Equal(t, models.SourceRecognized, pages[1].Source)
	assert.Equal(t, "texto reconocido", pages[1].Text)
	assert.InDelta(t, 0.84, pages[1].Quality, 1e-9)
	assert.Equal(t, []string{"2"}, runner.pages, "only the short page is rasterized")
}

func TestExtract_ForceOCR(t *testing.T) {
	longText := strings.Repeat("mucho texto nativo ", 20)
	content := buildPDF(t, longText, longText)

	runner := &stubRunner{}
	rec := &stubRecognizer{byLang: map[string]stubResult{
		"spa": {text: "reconocido", confidence: 70},
	}}
	e := newTestExtractor(Config{TextThreshold: 10, Languages: []string{"spa"}}, runner, rec)

	pages, err := e.Extract(context.Background(), models.Document{
		Filename: "scan.pdf",
		Content:  content,
		ForceOCR: true,
	})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.Equal(t, models.SourceRecognized, p.Source)
		assert.Equal(t, "reconocido", p.Text)
	}
	assert.Equal(t, []string{"1", "2"}, runner.pages)
}

func TestExtract_BestLanguageWins(t *testing.T) {
	content := buildPDF(t, "x")

	rec := &stubRecognizer{byLang: map[string]stubResult{
		"spa": {text: "hola", confidence: 80},
		"eng": {text: "hello", confidence: 91},
		"glg": {text: "ola", confidence: 60},
	}}
	e := newTestExtractor(Config{Languages: []string{"spa", "glg", "eng"}}, &stubRunner{}, rec)

	pages, err := e.Extract(context.Background(), models.Document{Filename: "s.pdf", Content: content, ForceOCR: true})
	require.NoError(t, err)
	require.Len(t, pages, 1)

	assert.Equal(t, "hello", pages[0].Text)
	assert.InDelta(t, 0.91, pages[0].Quality, 1e-9)
	assert.Equal(t, []string{"spa", "glg", "eng"}, rec.langs, "every configured language is tried")
}

func TestExtract_OneLanguageFailing(t *testing.T) {
	content := buildPDF(t, "x")

	rec := &stubRecognizer{byLang: map[string]stubResult{
		"spa": {err: fmt.Errorf("missing traineddata")},
		"eng": {text: "hello", confidence: 55},
	}}
	e := newTestExtractor(Config{Languages: []string{"spa", "eng"}}, &stubRunner{}, rec)

	pages, err := e.Extract(context.Background(), models.Document{Filename: "s.pdf", Content: content, ForceOCR: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", pages[0].Text)
}

func TestExtract_AllLanguagesFailing(t *testing.T) {
	content := buildPDF(t, "x")

	rec := &stubRecognizer{byLang: map[string]stubResult{}}
	e := newTestExtractor(Config{Languages: []string{"spa", "eng"}}, &stubRunner{}, rec)

	_, err := e.Extract(context.Background(), models.Document{Filename: "s.pdf", Content: content, ForceOCR: true})
	require.Error(t, err)

	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, KindOCR, xerr.Kind)
}

func TestExtract_RasterizerFailure(t *testing.T) {
	content := buildPDF(t, "x")

	e := newTestExtractor(Config{Languages: []string{"spa"}}, &stubRunner{fail: true}, &stubRecognizer{})

	_, err := e.Extract(context.Background(), models.Document{Filename: "s.pdf", Content: content, ForceOCR: true})
	require.Error(t, err)

	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, KindOCR, xerr.Kind)
}

func TestExtract_DeadlineExceeded(t *testing.T) {
	content := buildPDF(t, "x")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	e := newTestExtractor(Config{}, &stubRunner{}, &stubRecognizer{})
	_, err := e.Extract(ctx, models.Document{Filename: "slow.pdf", Content: content})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsCorrupt(err))
}

func TestDefaultConfigFallbacks(t *testing.T) {
	e := NewExtractor(Config{}, &stubRunner{}, &stubRecognizer{}, logger.NewTestLogger())
	assert.Equal(t, DefaultConfig(), e.cfg)
}
